package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start its background services.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Lockline.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop its background services.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Lockline.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Lockline.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan triggers one signal acquisition.
func (c *Client) Scan(relRange float64) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.client.Call("Lockline.Scan", ScanRequest{RelRange: relRange}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LockEngage engages the frequency lock.
func (c *Client) LockEngage() (*LockEngageResponse, error) {
	var resp LockEngageResponse
	if err := c.client.Call("Lockline.LockEngage", LockEngageRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LockRelease releases the frequency lock.
func (c *Client) LockRelease() (*LockReleaseResponse, error) {
	var resp LockReleaseResponse
	if err := c.client.Call("Lockline.LockRelease", LockReleaseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Locate matches the current signal against the reference spectrum.
func (c *Client) Locate(near *float64) (*LocateResponse, error) {
	var resp LocateResponse
	if err := c.client.Call("Lockline.Locate", LocateRequest{Near: near}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs the prelock transition search.
func (c *Client) Search() (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.client.Call("Lockline.Search", SearchRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events fetches lock journal entries, newest first.
func (c *Client) Events(limit int) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.client.Call("Lockline.Events", EventsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ArchiveHealth retrieves archive diagnostics.
func (c *Client) ArchiveHealth() (*ArchiveHealthResponse, error) {
	var resp ArchiveHealthResponse
	if err := c.client.Call("Lockline.ArchiveHealth", ArchiveHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail reads daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Lockline.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Lockline.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
