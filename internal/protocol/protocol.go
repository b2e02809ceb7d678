// Package protocol defines the wire messages exchanged between a peer and
// the signaling server: requests flowing peer -> server, and events
// flowing server -> peer. Every message is a JSON externally-tagged union,
// e.g. {"Signal":{"receiver":"<uuid>","data":{"Offer":"sdp"}}}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PeerId is the opaque 128-bit identifier assigned to a connection,
// rendered in JSON as a canonical UUID string.
type PeerId = uuid.UUID

// RoomId is a non-empty opaque room name.
type RoomId string

// NewPeerId mints a fresh, unpredictable peer identifier.
func NewPeerId() PeerId {
	return uuid.New()
}

// PeerSignal is a peer-to-peer payload relayed verbatim by the server:
// an SDP offer/answer or an ICE candidate string.
type PeerSignal struct {
	IceCandidate *string
	Offer        *string
	Answer       *string
}

func IceCandidateSignal(s string) PeerSignal { return PeerSignal{IceCandidate: &s} }
func OfferSignal(s string) PeerSignal        { return PeerSignal{Offer: &s} }
func AnswerSignal(s string) PeerSignal       { return PeerSignal{Answer: &s} }

func (s PeerSignal) MarshalJSON() ([]byte, error) {
	switch {
	case s.IceCandidate != nil:
		return json.Marshal(map[string]string{"IceCandidate": *s.IceCandidate})
	case s.Offer != nil:
		return json.Marshal(map[string]string{"Offer": *s.Offer})
	case s.Answer != nil:
		return json.Marshal(map[string]string{"Answer": *s.Answer})
	default:
		return nil, fmt.Errorf("protocol: empty PeerSignal")
	}
}

func (s *PeerSignal) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case setField(raw, "IceCandidate", &s.IceCandidate):
	case setField(raw, "Offer", &s.Offer):
	case setField(raw, "Answer", &s.Answer):
	default:
		return fmt.Errorf("protocol: unrecognized PeerSignal variant")
	}
	return nil
}

func setField(raw map[string]string, key string, dst **string) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	*dst = &v
	return true
}

// PeerRequest is a message sent from a peer to the server.
type PeerRequest struct {
	// Signal carries a relay request; nil when this is a KeepAlive.
	Signal *SignalRequest
	// KeepAlive is true for the no-op keepalive frame.
	KeepAlive bool
}

// SignalRequest is the payload of a PeerRequest.Signal variant.
type SignalRequest struct {
	Receiver PeerId     `json:"receiver"`
	Data     PeerSignal `json:"data"`
}

func NewSignalRequest(receiver PeerId, data PeerSignal) PeerRequest {
	return PeerRequest{Signal: &SignalRequest{Receiver: receiver, Data: data}}
}

func NewKeepAliveRequest() PeerRequest {
	return PeerRequest{KeepAlive: true}
}

func (r PeerRequest) MarshalJSON() ([]byte, error) {
	if r.Signal != nil {
		return json.Marshal(map[string]*SignalRequest{"Signal": r.Signal})
	}
	return json.Marshal(map[string]any{"KeepAlive": nil})
}

func (r *PeerRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if sig, ok := raw["Signal"]; ok {
		var s SignalRequest
		if err := json.Unmarshal(sig, &s); err != nil {
			return err
		}
		r.Signal = &s
		r.KeepAlive = false
		return nil
	}
	if _, ok := raw["KeepAlive"]; ok {
		r.Signal = nil
		r.KeepAlive = true
		return nil
	}
	return fmt.Errorf("protocol: unrecognized PeerRequest variant")
}

// PeerEvent is the "Peer" family of SignalEvent, addressed about a peer.
type PeerEvent struct {
	IdAssigned *PeerId
	NewPeer    *PeerId
	PeerLeft   *PeerId
	Signal     *SignalEventData
}

// SignalEventData is the payload of PeerEvent.Signal.
type SignalEventData struct {
	Sender PeerId     `json:"sender"`
	Data   PeerSignal `json:"data"`
}

func IdAssignedEvent(id PeerId) PeerEvent { return PeerEvent{IdAssigned: &id} }
func NewPeerEvent(id PeerId) PeerEvent    { return PeerEvent{NewPeer: &id} }
func PeerLeftEvent(id PeerId) PeerEvent   { return PeerEvent{PeerLeft: &id} }
func SignalEventOf(sender PeerId, data PeerSignal) PeerEvent {
	return PeerEvent{Signal: &SignalEventData{Sender: sender, Data: data}}
}

func (e PeerEvent) MarshalJSON() ([]byte, error) {
	switch {
	case e.IdAssigned != nil:
		return json.Marshal(map[string]PeerId{"IdAssigned": *e.IdAssigned})
	case e.NewPeer != nil:
		return json.Marshal(map[string]PeerId{"NewPeer": *e.NewPeer})
	case e.PeerLeft != nil:
		return json.Marshal(map[string]PeerId{"PeerLeft": *e.PeerLeft})
	case e.Signal != nil:
		return json.Marshal(map[string]*SignalEventData{"Signal": e.Signal})
	default:
		return nil, fmt.Errorf("protocol: empty PeerEvent")
	}
}

func (e *PeerEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["IdAssigned"]; ok {
		var id PeerId
		if err := json.Unmarshal(v, &id); err != nil {
			return err
		}
		e.IdAssigned = &id
		return nil
	}
	if v, ok := raw["NewPeer"]; ok {
		var id PeerId
		if err := json.Unmarshal(v, &id); err != nil {
			return err
		}
		e.NewPeer = &id
		return nil
	}
	if v, ok := raw["PeerLeft"]; ok {
		var id PeerId
		if err := json.Unmarshal(v, &id); err != nil {
			return err
		}
		e.PeerLeft = &id
		return nil
	}
	if v, ok := raw["Signal"]; ok {
		var s SignalEventData
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		e.Signal = &s
		return nil
	}
	return fmt.Errorf("protocol: unrecognized PeerEvent variant")
}

// SignalEvent is a message sent from the server to a peer.
type SignalEvent struct {
	Peer       *PeerEvent
	RoomOpened *string
	RoomClosed bool
	HostStatus *bool
	Data       []byte
	hasData    bool
}

func PeerSignalEvent(e PeerEvent) SignalEvent   { return SignalEvent{Peer: &e} }
func RoomOpenedEvent(roomID string) SignalEvent { return SignalEvent{RoomOpened: &roomID} }
func RoomClosedEvent() SignalEvent              { return SignalEvent{RoomClosed: true} }
func HostStatusEvent(isHost bool) SignalEvent   { return SignalEvent{HostStatus: &isHost} }
func DataEvent(b []byte) SignalEvent            { return SignalEvent{Data: b, hasData: true} }

func (e SignalEvent) MarshalJSON() ([]byte, error) {
	switch {
	case e.Peer != nil:
		return json.Marshal(map[string]*PeerEvent{"Peer": e.Peer})
	case e.RoomOpened != nil:
		return json.Marshal(map[string]string{"RoomOpened": *e.RoomOpened})
	case e.RoomClosed:
		return json.Marshal(map[string]any{"RoomClosed": nil})
	case e.HostStatus != nil:
		return json.Marshal(map[string]bool{"HostStatus": *e.HostStatus})
	case e.hasData:
		return json.Marshal(map[string][]int{"Data": byteSliceToInts(e.Data)})
	default:
		return nil, fmt.Errorf("protocol: empty SignalEvent")
	}
}

func (e *SignalEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["Peer"]; ok {
		var p PeerEvent
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		e.Peer = &p
		return nil
	}
	if v, ok := raw["RoomOpened"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		e.RoomOpened = &s
		return nil
	}
	if _, ok := raw["RoomClosed"]; ok {
		e.RoomClosed = true
		return nil
	}
	if v, ok := raw["HostStatus"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		e.HostStatus = &b
		return nil
	}
	if v, ok := raw["Data"]; ok {
		var ints []int
		if err := json.Unmarshal(v, &ints); err != nil {
			return err
		}
		e.Data = intsToByteSlice(ints)
		e.hasData = true
		return nil
	}
	return fmt.Errorf("protocol: unrecognized SignalEvent variant")
}

func byteSliceToInts(b []byte) []int {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return ints
}

func intsToByteSlice(ints []int) []byte {
	b := make([]byte, len(ints))
	for i, v := range ints {
		b[i] = byte(v)
	}
	return b
}
