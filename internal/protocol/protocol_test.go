package protocol

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestPeerRequestRoundTrip(t *testing.T) {
	receiver := uuid.New()
	cases := map[string]PeerRequest{
		"signal ice":   NewSignalRequest(receiver, IceCandidateSignal("candidate:1 1 UDP 1 1.2.3.4 1 typ host")),
		"signal offer": NewSignalRequest(receiver, OfferSignal("v=0 sdp offer")),
		"signal answer": NewSignalRequest(receiver, AnswerSignal("v=0 sdp answer")),
		"keep alive":    NewKeepAliveRequest(),
	}

	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(want)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got PeerRequest
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			assertRequestEqual(t, want, got)
		})
	}
}

func assertRequestEqual(t *testing.T, want, got PeerRequest) {
	t.Helper()
	if want.KeepAlive != got.KeepAlive {
		t.Fatalf("KeepAlive mismatch: want %v got %v", want.KeepAlive, got.KeepAlive)
	}
	if (want.Signal == nil) != (got.Signal == nil) {
		t.Fatalf("Signal presence mismatch: want %+v got %+v", want.Signal, got.Signal)
	}
	if want.Signal == nil {
		return
	}
	if want.Signal.Receiver != got.Signal.Receiver {
		t.Fatalf("receiver mismatch: want %v got %v", want.Signal.Receiver, got.Signal.Receiver)
	}
	assertSignalEqual(t, want.Signal.Data, got.Signal.Data)
}

func assertSignalEqual(t *testing.T, want, got PeerSignal) {
	t.Helper()
	if ptrStr(want.IceCandidate) != ptrStr(got.IceCandidate) {
		t.Fatalf("IceCandidate mismatch: %v vs %v", ptrStr(want.IceCandidate), ptrStr(got.IceCandidate))
	}
	if ptrStr(want.Offer) != ptrStr(got.Offer) {
		t.Fatalf("Offer mismatch: %v vs %v", ptrStr(want.Offer), ptrStr(got.Offer))
	}
	if ptrStr(want.Answer) != ptrStr(got.Answer) {
		t.Fatalf("Answer mismatch: %v vs %v", ptrStr(want.Answer), ptrStr(got.Answer))
	}
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestSignalEventRoundTrip(t *testing.T) {
	peerA := uuid.New()
	peerB := uuid.New()

	cases := map[string]SignalEvent{
		"id assigned": PeerSignalEvent(IdAssignedEvent(peerA)),
		"new peer":    PeerSignalEvent(NewPeerEvent(peerA)),
		"peer left":   PeerSignalEvent(PeerLeftEvent(peerA)),
		"peer signal": PeerSignalEvent(SignalEventOf(peerA, OfferSignal("v=0 sdp"))),
		"room opened": RoomOpenedEvent("alpha"),
		"room closed": RoomClosedEvent(),
		"host true":   HostStatusEvent(true),
		"host false":  HostStatusEvent(false),
		"data":        DataEvent([]byte{1, 2, 3}),
	}
	_ = peerB

	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(want)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got SignalEvent
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			assertEventEqual(t, want, got)
		})
	}
}

func assertEventEqual(t *testing.T, want, got SignalEvent) {
	t.Helper()
	if (want.Peer == nil) != (got.Peer == nil) {
		t.Fatalf("Peer presence mismatch")
	}
	if want.Peer != nil {
		assertPeerEventEqual(t, *want.Peer, *got.Peer)
	}
	if ptrStr(want.RoomOpened) != ptrStr(got.RoomOpened) {
		t.Fatalf("RoomOpened mismatch")
	}
	if want.RoomClosed != got.RoomClosed {
		t.Fatalf("RoomClosed mismatch")
	}
	if want.HostStatus != nil && got.HostStatus != nil && *want.HostStatus != *got.HostStatus {
		t.Fatalf("HostStatus mismatch")
	}
	if (want.HostStatus == nil) != (got.HostStatus == nil) {
		t.Fatalf("HostStatus presence mismatch")
	}
	if string(want.Data) != string(got.Data) {
		t.Fatalf("Data mismatch: %v vs %v", want.Data, got.Data)
	}
}

func assertPeerEventEqual(t *testing.T, want, got PeerEvent) {
	t.Helper()
	switch {
	case want.IdAssigned != nil:
		if got.IdAssigned == nil || *want.IdAssigned != *got.IdAssigned {
			t.Fatalf("IdAssigned mismatch")
		}
	case want.NewPeer != nil:
		if got.NewPeer == nil || *want.NewPeer != *got.NewPeer {
			t.Fatalf("NewPeer mismatch")
		}
	case want.PeerLeft != nil:
		if got.PeerLeft == nil || *want.PeerLeft != *got.PeerLeft {
			t.Fatalf("PeerLeft mismatch")
		}
	case want.Signal != nil:
		if got.Signal == nil || want.Signal.Sender != got.Signal.Sender {
			t.Fatalf("Signal sender mismatch")
		}
		assertSignalEqual(t, want.Signal.Data, got.Signal.Data)
	}
}

func TestPeerSignalWireShape(t *testing.T) {
	data, err := json.Marshal(OfferSignal("sdp-1"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"Offer":"sdp-1"}` {
		t.Fatalf("unexpected wire shape: %s", data)
	}
}

func TestPeerRequestWireShape(t *testing.T) {
	receiver := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	req := NewSignalRequest(receiver, OfferSignal("sdp-1"))
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Signal":{"receiver":"11111111-1111-1111-1111-111111111111","data":{"Offer":"sdp-1"}}}`
	if string(data) != want {
		t.Fatalf("unexpected wire shape:\n got: %s\nwant: %s", data, want)
	}
}

func TestKeepAliveWireShape(t *testing.T) {
	data, err := json.Marshal(NewKeepAliveRequest())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"KeepAlive":null}` {
		t.Fatalf("unexpected wire shape: %s", data)
	}
}
