// Package agrochat provides a Go client for the FarmLink chat service: the
// durable message log over HTTP and the live relay over WebSocket.
package agrochat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a chat API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new client for the given server.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("chat error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// RoomToken builds the wire token for a product conversation. Segments are
// percent-encoded the way the server expects, including "-" so a segment can
// never contain the "--" delimiter.
func RoomToken(product, buyerEmail, sellerEmail string) string {
	return escapeSegment(product) + "--" + escapeSegment(buyerEmail) + "--" + escapeSegment(sellerEmail)
}

func escapeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
			continue
		}
		switch c {
		case '_', '.', '!', '~', '*', '\'', '(', ')':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Participant identifies one side of a conversation.
type Participant struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Message is one persisted chat message.
type Message struct {
	ID        string      `json:"id"`
	Product   string      `json:"product"`
	Sender    Participant `json:"sender"`
	Receiver  Participant `json:"receiver"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ListMessages retrieves a room's conversation history, oldest first.
func (c *Client) ListMessages(roomToken string) ([]Message, error) {
	respBody, err := c.doRequest("GET", "/api/messages?roomId="+url.QueryEscape(roomToken), nil)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if err := json.Unmarshal(respBody, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// AppendMessageRequest is the request body for appending a message.
type AppendMessageRequest struct {
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// AppendMessage persists one message and returns the stored record.
func (c *Client) AppendMessage(roomToken, sender, content string) (*Message, error) {
	req := AppendMessageRequest{RoomID: roomToken, Sender: sender, Content: content}
	body, _ := json.Marshal(req)

	respBody, err := c.doRequest("POST", "/api/messages", body)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Conversation is one entry in a buyer's or seller's inbox.
type Conversation struct {
	RoomID           string    `json:"roomId"`
	Product          string    `json:"productId"`
	CounterpartEmail string    `json:"counterpartEmail"`
	CounterpartName  string    `json:"counterpartName,omitempty"`
	LastMessage      string    `json:"lastMessage"`
	CreatedAt        time.Time `json:"createdAt"`
}

// BuyerChats lists the buyer's conversations, newest first.
func (c *Client) BuyerChats(buyerEmail string) ([]Conversation, error) {
	return c.fetchChats("/api/chats/buyer?buyerEmail=" + url.QueryEscape(buyerEmail))
}

// SellerChats lists the seller's conversations, newest first.
func (c *Client) SellerChats(sellerEmail string) ([]Conversation, error) {
	return c.fetchChats("/api/chats/seller?sellerEmail=" + url.QueryEscape(sellerEmail))
}

func (c *Client) fetchChats(path string) ([]Conversation, error) {
	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var chats []Conversation
	if err := json.Unmarshal(respBody, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// UserProfile is a participant's public chat profile.
type UserProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// GetUser looks a participant up by email.
func (c *Client) GetUser(email string) (*UserProfile, error) {
	respBody, err := c.doRequest("GET", "/api/users/"+url.PathEscape(email), nil)
	if err != nil {
		return nil, err
	}

	var profile UserProfile
	if err := json.Unmarshal(respBody, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SearchResult is one message search hit.
type SearchResult struct {
	ID        string `json:"id"`
	Product   string `json:"product"`
	From      string `json:"from"`
	Content   string `json:"content"`
	Timestamp int64  `json:"ts"`
}

// SearchResponse is the response from searching messages.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// Search searches message bodies.
func (c *Client) Search(query string, limit int) (*SearchResponse, error) {
	path := fmt.Sprintf("/api/find?q=%s&limit=%d", url.QueryEscape(query), limit)
	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
