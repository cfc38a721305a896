package network

import (
	"context"
	"net"
	"testing"
)

func TestListenRebind(t *testing.T) {
	ctx := context.Background()

	ln, err := Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	accepted := make(chan struct{})
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
		close(accepted)
	}()

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	<-accepted
	c.Close()
	ln.Close()

	again, err := Listen(ctx, addr)
	if err != nil {
		t.Fatalf("rebind %s: %v", addr, err)
	}
	again.Close()
}

func TestListenBadAddress(t *testing.T) {
	if _, err := Listen(context.Background(), "not-an-address"); err == nil {
		t.Fatal("expected an error")
	}
}
