// Package server wires the HTTP surface: the carrier's call webhook and the
// media-stream websocket endpoint that runs one bridged call per connection.
package server

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/gorilla/websocket"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/dsp"
	"github.com/tommyd2377/voice-ai-system/pkg/bridge"
	"github.com/tommyd2377/voice-ai-system/pkg/config"
	"github.com/tommyd2377/voice-ai-system/pkg/realtime"
	"github.com/tommyd2377/voice-ai-system/pkg/telephony"
)

// submitToolName is the function the engine calls to finalize an order.
const submitToolName = "submit_order"

// Server handles the webhook and media websocket endpoints.
type Server struct {
	cfg      *config.Config
	client   *realtime.Client
	store    bridge.Submitter
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New builds a server from the loaded configuration. store may be nil when
// orders are not persisted.
func New(cfg *config.Config, store bridge.Submitter, log *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: nil config")
	}
	if log == nil {
		log = slog.Default()
	}

	var opts []realtime.Option
	if cfg.Engine.URL != "" {
		opts = append(opts, realtime.WithURL(cfg.Engine.URL))
	}

	return &Server{
		cfg:    cfg,
		client: realtime.NewClient(cfg.Engine.APIKey, opts...),
		store:  store,
		log:    log,
		upgrader: websocket.Upgrader{
			// The carrier's media-stream client sends no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Handler returns the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice", s.handleVoiceWebhook)
	mux.HandleFunc("/media", s.handleMedia)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// voiceResponse is the carrier's call-control descriptor: connect the call
// to our media websocket, passing the caller's number through as a custom
// stream parameter.
type voiceResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect voiceConnect `xml:"Connect"`
}

type voiceConnect struct {
	Stream voiceStream `xml:"Stream"`
}

type voiceStream struct {
	URL        string       `xml:"url,attr"`
	Parameters []voiceParam `xml:"Parameter"`
}

type voiceParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// handleVoiceWebhook answers the carrier's incoming-call webhook.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	from := r.FormValue("From")
	callSid := r.FormValue("CallSid")
	s.log.Info("incoming call", "call_sid", callSid, "from", from)

	resp := voiceResponse{
		Connect: voiceConnect{
			Stream: voiceStream{
				URL: fmt.Sprintf("wss://%s/media", s.cfg.PublicHost),
				Parameters: []voiceParam{
					{Name: "from", Value: from},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("webhook response encode failed", "err", err)
	}
}

// handleMedia accepts the carrier's media websocket and runs one bridged
// call on it until either leg disconnects.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("media upgrade failed", "err", err)
		return
	}
	stream := telephony.NewStream(conn)

	ctx := r.Context()
	session, err := s.client.Connect(ctx, &realtime.ConnectConfig{Model: s.cfg.Engine.Model})
	if err != nil {
		s.log.Error("engine connect failed", "err", err)
		stream.Close()
		return
	}

	call := bridge.NewCall(stream, session, s.store, s.callConfig(), s.log)
	if err := call.Run(ctx); err != nil {
		s.log.Warn("call ended with error", "err", err)
	}
}

func (s *Server) callConfig() bridge.Config {
	cfg := bridge.Config{
		Instructions: s.cfg.Agent.Instructions,
		Greeting:     s.cfg.Agent.Greeting,
		Voice:        s.cfg.Agent.Voice,
		Tools:        []realtime.Tool{submitOrderTool()},
		SubmitTool:   submitToolName,
		InitTimeout:  s.cfg.Agent.InitTimeout,
	}
	if s.cfg.Agent.AGCTargetDB != 0 {
		cond := dsp.DefaultConfig()
		cond.AGCTargetDB = s.cfg.Agent.AGCTargetDB
		cfg.Conditioner = cond
	}
	if s.cfg.Agent.VADThreshold != 0 {
		cfg.TurnDetection = &realtime.TurnDetection{
			Type:      "server_vad",
			Threshold: s.cfg.Agent.VADThreshold,
		}
	}
	return cfg
}

// submitOrderTool declares the order-finalization function to the engine.
func submitOrderTool() realtime.Tool {
	return realtime.Tool{
		Type:        "function",
		Name:        submitToolName,
		Description: "Submit the caller's finalized order once every item has been confirmed.",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"items": {
					Type:        "array",
					Description: "Ordered items with quantities.",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"name":     {Type: "string"},
							"quantity": {Type: "integer"},
						},
						Required: []string{"name", "quantity"},
					},
				},
				"notes": {
					Type:        "string",
					Description: "Special instructions, if any.",
				},
			},
			Required: []string{"items"},
		},
	}
}
