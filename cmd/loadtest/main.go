// Command loadtest is a small smoke-test client that drives a running
// signalserver through the end-to-end scenarios of the signaling spec:
// room creation, a guest joining, a relayed offer, and guest departure.
// It is not part of the test suite; run it by hand against a live
// server to sanity-check a deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Woolfer0097/signalmatch/internal/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:2053", "signalserver bind address")
	room := flag.String("room", "loadtest", "room to join")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/webrtc/" + *room}

	fmt.Println("connecting host...")
	host, hostMsgs := dial(u.String())
	defer host.Close()

	hostId := expectIdAssigned(hostMsgs)
	expectRoomOpened(hostMsgs, *room)
	expectHostStatus(hostMsgs, true)
	fmt.Println("host ready:", hostId)

	fmt.Println("connecting guest...")
	guest, guestMsgs := dial(u.String())
	defer guest.Close()

	guestId := expectIdAssigned(guestMsgs)
	expectHostStatus(guestMsgs, false)
	fmt.Println("guest ready:", guestId)

	newPeer := expectPeerEvent(hostMsgs)
	if newPeer.NewPeer == nil || *newPeer.NewPeer != guestId {
		panic("host did not receive NewPeer for guest")
	}
	fmt.Println("host observed guest join")

	offer := protocol.NewSignalRequest(hostId, protocol.OfferSignal("v=0 sdp offer"))
	send(guest, offer)

	sig := expectPeerEvent(hostMsgs)
	if sig.Signal == nil || sig.Signal.Sender != guestId {
		panic("host did not receive relayed offer")
	}
	fmt.Println("host received relayed offer from guest")

	guest.Close()
	time.Sleep(200 * time.Millisecond)

	left := expectPeerEvent(hostMsgs)
	if left.PeerLeft == nil || *left.PeerLeft != guestId {
		panic("host did not receive PeerLeft for departed guest")
	}
	fmt.Println("host observed guest departure; loadtest complete")
}

func dial(addr string) (*websocket.Conn, chan protocol.SignalEvent) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		panic(fmt.Sprintf("dial %s: %v", addr, err))
	}
	events := make(chan protocol.SignalEvent, 16)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(events)
				return
			}
			var event protocol.SignalEvent
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}
			events <- event
		}
	}()
	return conn, events
}

func send(conn *websocket.Conn, req protocol.PeerRequest) {
	data, err := json.Marshal(req)
	if err != nil {
		panic(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		panic(err)
	}
}

func expectIdAssigned(events chan protocol.SignalEvent) protocol.PeerId {
	e := nextEvent(events)
	if e.Peer == nil || e.Peer.IdAssigned == nil {
		panic("expected IdAssigned")
	}
	return *e.Peer.IdAssigned
}

func expectRoomOpened(events chan protocol.SignalEvent, want string) {
	e := nextEvent(events)
	if e.RoomOpened == nil || *e.RoomOpened != want {
		panic(fmt.Sprintf("expected RoomOpened(%q), got %+v", want, e))
	}
}

func expectHostStatus(events chan protocol.SignalEvent, want bool) {
	e := nextEvent(events)
	if e.HostStatus == nil || *e.HostStatus != want {
		panic(fmt.Sprintf("expected HostStatus(%v), got %+v", want, e))
	}
}

func expectPeerEvent(events chan protocol.SignalEvent) protocol.PeerEvent {
	e := nextEvent(events)
	if e.Peer == nil {
		panic(fmt.Sprintf("expected Peer event, got %+v", e))
	}
	return *e.Peer
}

func nextEvent(events chan protocol.SignalEvent) protocol.SignalEvent {
	select {
	case e, ok := <-events:
		if !ok {
			panic("connection closed while waiting for event")
		}
		return e
	case <-time.After(5 * time.Second):
		panic("timed out waiting for event")
	}
}
