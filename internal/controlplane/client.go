package controlplane

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin wrapper around a *grpc.ClientConn forcing the JSON
// content-subtype registered in codec.go.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a control-plane server at addr (host:port,
// plaintext loopback — this channel never leaves the host, per spec's
// "TLS out of scope").
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("controlplane: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Health probes the liveness of the control-plane server this Client
// is connected to; the LB connects one Client to each API instance's
// own control-plane listener. instance only labels the request.
func (c *Client) Health(ctx context.Context, instance string) (bool, error) {
	req := &HealthRequest{Instance: instance}
	reply := new(HealthReply)

	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Health", req, reply); err != nil {
		return false, err
	}
	return reply.Healthy, nil
}

// Purge triggers an authenticated out-of-band ledger purge.
func (c *Client) Purge(ctx context.Context, req *PurgeRequest) (bool, error) {
	reply := new(PurgeReply)

	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Purge", req, reply); err != nil {
		return false, err
	}
	return reply.Purged, nil
}
