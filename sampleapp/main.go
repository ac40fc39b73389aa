package main

import (
	"fmt"
	"log"

	"github.com/lightproto/lightwire"
	"github.com/lightproto/lightwire/wire"
)

// Ping is a hand-written message type: field tags are computed once as
// package state, and the type implements both codec capabilities itself.
type Ping struct {
	Seq     uint64
	Payload string
}

var (
	pingSeqTag     = wire.MustFieldTag(1, wire.WireVarint)
	pingPayloadTag = wire.MustFieldTag(2, wire.WireBytes)
)

func (p *Ping) MarshalWire(e *wire.Encoder) error {
	if p.Seq != 0 {
		e.EncodeVarintField(pingSeqTag, p.Seq)
	}
	if p.Payload != "" {
		e.EncodeStringField(pingPayloadTag, p.Payload)
	}
	return nil
}

func (p *Ping) UnmarshalWire(d *wire.Decoder) error {
	for d.Remaining() > 0 {
		num, wt, err := d.DecodeTag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			p.Seq, err = d.DecodeVarint()
		case 2:
			p.Payload, err = d.DecodeString()
		default:
			err = d.SkipField(wt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	fmt.Println("=== Hand-written message types ===")
	demonstrateStatic()

	fmt.Println("\n=== Schema-driven encoding without generated code ===")
	demonstrateDynamic()
}

func demonstrateStatic() {
	ping := &Ping{Seq: 42, Payload: "hello"}
	data, err := lightwire.Marshal(ping)
	if err != nil {
		log.Fatalf("Failed to marshal ping: %v", err)
	}
	fmt.Printf("Ping{Seq: %d, Payload: %q} -> % X\n", ping.Seq, ping.Payload, data)

	var pong Ping
	if err := lightwire.Unmarshal(data, &pong); err != nil {
		log.Fatalf("Failed to unmarshal ping: %v", err)
	}
	fmt.Printf("Round trip: Seq=%d Payload=%q\n", pong.Seq, pong.Payload)
}

func demonstrateDynamic() {
	lw := lightwire.New()
	if err := lw.LoadSchema("testdata/orders.proto"); err != nil {
		log.Fatalf("Failed to load orders.proto: %v", err)
	}
	fmt.Printf("Loaded messages: %v\n", lw.ListMessages())

	order := map[string]interface{}{
		"id":     "ord-17",
		"status": "STATUS_PAID",
		"items": []map[string]interface{}{
			{"sku": "pen", "quantity": int32(3), "dims": []int32{10, 20, 30}},
			{"sku": "notebook", "quantity": int32(1)},
		},
		"totals": map[string]int64{"net": 1200, "tax": 230},
		"email":  "jane@example.com",
	}

	encoded, err := lw.Marshal(order, "Order")
	if err != nil {
		log.Fatalf("Failed to encode order: %v", err)
	}
	fmt.Printf("Order encoded to %d bytes\n", len(encoded))

	decoded, err := lw.Parse(encoded, "Order")
	if err != nil {
		log.Fatalf("Failed to decode order: %v", err)
	}
	fmt.Printf("Order %v is %v\n", decoded["id"], decoded["status"])
	fmt.Printf("Totals: %v\n", decoded["totals"])
	for i, item := range decoded["items"].([]interface{}) {
		fmt.Printf("Item %d: %v\n", i, item)
	}
}
