package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/recording"
)

// MaxInlineDuration caps record_audio, which returns the audio inline
const MaxInlineDuration = 60

// DeviceLister enumerates capture devices
type DeviceLister func() ([]audio.DeviceInfo, error)

type Config struct {
	ServerName    string
	ServerVersion string

	// ListDevices defaults to the system capture devices
	ListDevices DeviceLister
}

type Server struct {
	config    Config
	mcpServer *sdk.Server
	rec       *recording.Recorder
	log       *zap.Logger
}

func NewServer(cfg Config, rec *recording.Recorder, log *zap.Logger) *Server {
	if cfg.ListDevices == nil {
		cfg.ListDevices = audio.ListDevices
	}

	s := &Server{
		config: cfg,
		rec:    rec,
		log:    logging.OrNop(log),
	}

	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	s.registerTools()

	return s
}

// Start serves over stdin/stdout until ctx is done or the client leaves
func (s *Server) Start(ctx context.Context) error {
	return s.Run(ctx, &sdk.StdioTransport{})
}

// Run serves over an arbitrary transport
func (s *Server) Run(ctx context.Context, t sdk.Transport) error {
	return s.mcpServer.Run(ctx, t)
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "record_audio",
		Description: "Record from the capture device for a duration and return the raw little-endian PCM base64 encoded",
	}, s.handleRecordAudio)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "record_wave_file",
		Description: "Record from the capture device for a duration into a WAV file on the server's filesystem",
	}, s.handleRecordWaveFile)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "capture_status",
		Description: "Describe the capture device, its state and audio format",
	}, s.handleCaptureStatus)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "list_devices",
		Description: "List the available audio capture devices",
	}, s.handleListDevices)
}
