package voice

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/atriumweb/atrium/kernel/utils"
)

// ErrChannelNotOpen indicates the voice data channel is not usable yet
var ErrChannelNotOpen = errors.New("voice: data channel not open")

// TransportConfig holds voice transport configuration
type TransportConfig struct {
	STUNServers []string
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		STUNServers: []string{"stun:stun.l.google.com:19302"},
	}
}

// activitySignal is the control message exchanged on the voice channel
type activitySignal struct {
	Speaking bool  `json:"speaking"`
	At       int64 `json:"at"`
}

// Transport negotiates a WebRTC data channel for voice control traffic
// (activity gating). Media itself flows through the host's audio
// stack; SDP exchange rides the API client.
type Transport struct {
	mu sync.Mutex

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	onRemoteActivity func(speaking bool)

	logger *utils.Logger
}

func NewTransport(cfg TransportConfig, logger *utils.Logger) (*Transport, error) {
	if logger == nil {
		logger = utils.DefaultLogger("voice-transport")
	}

	config := webrtc.Configuration{}
	if len(cfg.STUNServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}

	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, utils.WrapError(err, "voice: peer connection failed")
	}

	t := &Transport{
		pc:     pc,
		logger: logger,
	}

	dc, err := pc.CreateDataChannel("voice", nil)
	if err != nil {
		pc.Close()
		return nil, utils.WrapError(err, "voice: data channel failed")
	}
	t.dc = dc

	dc.OnOpen(func() {
		logger.Info("Voice channel open")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.handleRemote(msg.Data)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("Voice transport state",
			utils.String("state", state.String()),
		)
	})

	return t, nil
}

// CreateOffer produces a local SDP offer with ICE gathering complete,
// ready to ship through the signaling path.
func (t *Transport) CreateOffer() (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", utils.WrapError(err, "voice: create offer")
	}

	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", utils.WrapError(err, "voice: set local description")
	}
	<-gatherComplete

	return t.pc.LocalDescription().SDP, nil
}

// AcceptAnswer installs the remote answer SDP
func (t *Transport) AcceptAnswer(sdp string) error {
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// OnRemoteActivity registers the callback for remote speaking
// transitions
func (t *Transport) OnRemoteActivity(fn func(speaking bool)) {
	t.mu.Lock()
	t.onRemoteActivity = fn
	t.mu.Unlock()
}

// SendActivity ships a local speaking transition to the peer
func (t *Transport) SendActivity(speaking bool) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}

	data, err := json.Marshal(activitySignal{
		Speaking: speaking,
		At:       time.Now().UnixNano(),
	})
	if err != nil {
		return err
	}
	return dc.Send(data)
}

func (t *Transport) handleRemote(data []byte) {
	var signal activitySignal
	if err := json.Unmarshal(data, &signal); err != nil {
		t.logger.Debug("Bad voice signal", utils.Err(err))
		return
	}

	t.mu.Lock()
	fn := t.onRemoteActivity
	t.mu.Unlock()

	if fn != nil {
		fn(signal.Speaking)
	}
}

// Close tears the peer connection down
func (t *Transport) Close() error {
	return t.pc.Close()
}
