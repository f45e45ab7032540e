package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/google/uuid"
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

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

func envelope() Envelope {
	return Envelope{RequestID: uuid.NewString()}
}

// Enqueue schedules records for upload.
func (c *Client) Enqueue(recordIDs []int64) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.call("Enqueue", EnqueueRequest{Envelope: envelope(), RecordIDs: recordIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddRecord registers a capture record with the daemon.
func (c *Client) AddRecord(req AddRecordRequest) (*AddRecordResponse, error) {
	var resp AddRecordResponse
	req.Envelope = envelope()
	if err := c.call("AddRecord", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{Envelope: envelope()}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queue items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("QueueList", QueueListRequest{Envelope: envelope(), Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStats returns per-status counts.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	var resp QueueStatsResponse
	if err := c.call("QueueStats", QueueStatsRequest{Envelope: envelope()}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryFailed retries failed items; no ids retries every failed item.
func (c *Client) RetryFailed(recordIDs []int64) (*RetryFailedResponse, error) {
	var resp RetryFailedResponse
	if err := c.call("RetryFailed", RetryFailedRequest{Envelope: envelope(), RecordIDs: recordIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Record returns a record's detail and, with inspect, its content report.
func (c *Client) Record(id int64, inspect bool) (*RecordResponse, error) {
	var resp RecordResponse
	if err := c.call("Record", RecordRequest{Envelope: envelope(), ID: id, Inspect: inspect}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events returns recorded status events after since.
func (c *Client) Events(since int64, limit int) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call("Events", EventsRequest{Envelope: envelope(), Since: since, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckIntegrity runs the integrity pass in the daemon.
func (c *Client) CheckIntegrity() (*CheckIntegrityResponse, error) {
	var resp CheckIntegrityResponse
	if err := c.call("CheckIntegrity", CheckIntegrityRequest{Envelope: envelope()}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Drain nudges the upload worker.
func (c *Client) Drain() (*DrainResponse, error) {
	var resp DrainResponse
	if err := c.call("Drain", DrainRequest{Envelope: envelope()}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
