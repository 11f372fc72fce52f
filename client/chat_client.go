package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mingle_server/models"
	"mingle_server/utils"

	"github.com/google/uuid"
)

const provisionalIDPrefix = "local-"

// SendFailure describes a send whose provisional entry was rolled back.
// Content carries the original text so the compose state can be restored.
type SendFailure struct {
	PairID  string
	Content string
	Kind    string
	Err     error
}

// ChatClient combines the persistent channel with the stateless HTTP
// fallback and keeps one reconciled view per pair. Sends are optimistic:
// the provisional message shows immediately and the authoritative copy
// replaces it when it arrives on either path.
type ChatClient struct {
	Channel    *Channel
	BaseURL    string // http(s) origin of the fallback API
	Token      string
	UserID     string
	HTTPClient *http.Client
	Clock      func() time.Time

	mu    sync.Mutex
	views map[string]*Reconciler

	Typing *TypingWatcher

	// OnUpdate fires whenever a pair's rendered view changed.
	OnUpdate func(pairID string)
	// OnSendFailed fires after both delivery paths failed and the
	// provisional entry was removed.
	OnSendFailed func(failure SendFailure)
	// OnPresence mirrors channel presence pushes.
	OnPresence func(userID string, online bool)
}

// NewChatClient wires the channel callbacks into the reconciled views.
func NewChatClient(channel *Channel, baseURL, token, userID string) *ChatClient {
	c := &ChatClient{
		Channel:    channel,
		BaseURL:    baseURL,
		Token:      token,
		UserID:     userID,
		HTTPClient: http.DefaultClient,
		views:      make(map[string]*Reconciler),
	}
	c.Typing = NewTypingWatcher(nil)

	channel.OnMessage = func(message models.Message) {
		c.view(message.PairID).ApplyAuthoritative(message)
		c.notifyUpdate(message.PairID)
	}
	channel.OnSendError = func(pairID string, err error) {
		c.rollbackNewest(pairID, err)
	}
	channel.OnTypingStart = func(pairID, userID string) { c.Typing.Start(pairID, userID) }
	channel.OnTypingStop = func(pairID, userID string) { c.Typing.Stop(pairID, userID) }
	channel.OnPresence = func(userID string, online bool) {
		if c.OnPresence != nil {
			c.OnPresence(userID, online)
		}
	}
	return c
}

func (c *ChatClient) view(pairID string) *Reconciler {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[pairID]
	if !ok {
		v = NewReconciler()
		c.views[pairID] = v
	}
	return v
}

// Messages returns the current rendered view for a pair.
func (c *ChatClient) Messages(pairID string) []models.Message {
	return c.view(pairID).Messages()
}

// JoinRoom subscribes the channel to the pair's room.
func (c *ChatClient) JoinRoom(pairID string) error {
	return c.Channel.JoinRoom(pairID)
}

// LeaveRoom unsubscribes from the pair's room. The reconciled view stays;
// in-flight sends keep reconciling into it silently.
func (c *ChatClient) LeaveRoom(pairID string) error {
	return c.Channel.LeaveRoom(pairID)
}

// Send displays the message optimistically and delivers it in the
// background. Errors surface through OnSendFailed, never as return values.
func (c *ChatClient) Send(pairID, content, kind string) {
	if kind == "" {
		kind = models.KindText
	}
	provisional := models.Message{
		MessageID: provisionalIDPrefix + uuid.NewString(),
		PairID:    pairID,
		SenderID:  c.UserID,
		Content:   content,
		Kind:      kind,
		CreatedAt: models.FormatTimestamp(c.now()),
	}
	view := c.view(pairID)
	view.AppendProvisional(provisional)
	c.notifyUpdate(pairID)

	// Delivery is allowed to complete and reconcile even after the view
	// is navigated away from, so it runs detached.
	go c.deliver(view, provisional)
}

func (c *ChatClient) deliver(view *Reconciler, provisional models.Message) {
	err := c.Channel.SendMessage(provisional.PairID, provisional.Content, provisional.Kind)
	if err == nil {
		// The room broadcast carries the authoritative copy back; the
		// reconciler collapses it into the provisional entry. If nothing
		// arrives within the ack window we keep trusting persistence
		// rather than blocking the UI.
		return
	}
	if !errors.Is(err, utils.ErrTransport) {
		c.failSend(view, provisional, err)
		return
	}

	persisted, err := c.fallbackSend(provisional.PairID, provisional.Content, provisional.Kind)
	if err != nil {
		c.failSend(view, provisional, err)
		return
	}
	view.ApplyAuthoritative(*persisted)
	c.notifyUpdate(provisional.PairID)
}

func (c *ChatClient) failSend(view *Reconciler, provisional models.Message, err error) {
	removed, ok := view.RemoveProvisional(provisional.MessageID)
	if !ok {
		return
	}
	c.notifyUpdate(provisional.PairID)
	if c.OnSendFailed != nil {
		c.OnSendFailed(SendFailure{
			PairID:  removed.PairID,
			Content: removed.Content,
			Kind:    removed.Kind,
			Err:     err,
		})
	}
}

func (c *ChatClient) rollbackNewest(pairID string, err error) {
	removed, ok := c.view(pairID).RemoveNewestProvisional()
	if !ok {
		return
	}
	c.notifyUpdate(pairID)
	if c.OnSendFailed != nil {
		c.OnSendFailed(SendFailure{
			PairID:  pairID,
			Content: removed.Content,
			Kind:    removed.Kind,
			Err:     err,
		})
	}
}

// fallbackSend posts to the stateless API; both paths converge on the same
// server-side persistence call.
func (c *ChatClient) fallbackSend(pairID, content, kind string) (*models.Message, error) {
	body, err := json.Marshal(map[string]string{
		"pairId":  pairID,
		"content": content,
		"kind":    kind,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/api/chat/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fallback send: %v", utils.ErrPersistence, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}

	var message models.Message
	if err := json.NewDecoder(resp.Body).Decode(&message); err != nil {
		return nil, fmt.Errorf("%w: decode fallback response: %v", utils.ErrPersistence, err)
	}
	return &message, nil
}

// History fetches one page of persisted messages (oldest-first within the
// page) and merges it into the reconciled view.
func (c *ChatClient) History(pairID string, page, limit int) ([]models.Message, bool, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/api/chat/messages", nil)
	if err != nil {
		return nil, false, err
	}
	q := req.URL.Query()
	q.Set("pairId", pairID)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: fetch history: %v", utils.ErrPersistence, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, httpError(resp)
	}

	var payload struct {
		Messages []models.Message `json:"messages"`
		HasMore  bool             `json:"hasMore"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("%w: decode history: %v", utils.ErrPersistence, err)
	}

	view := c.view(pairID)
	for _, message := range payload.Messages {
		view.ApplyAuthoritative(message)
	}
	c.notifyUpdate(pairID)
	return payload.Messages, payload.HasMore, nil
}

// MarkRead reports the caller has read the pair's messages.
func (c *ChatClient) MarkRead(pairID string) error {
	body, err := json.Marshal(map[string]string{"pairId": pairID})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/api/chat/messages/read", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: mark read: %v", utils.ErrPersistence, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	return nil
}

func (c *ChatClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *ChatClient) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *ChatClient) notifyUpdate(pairID string) {
	if c.OnUpdate != nil {
		c.OnUpdate(pairID)
	}
}

func httpError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &payload)

	var base error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		base = utils.ErrAuthentication
	case http.StatusNotFound:
		base = utils.ErrNotFound
	case http.StatusBadRequest:
		base = utils.ErrValidation
	default:
		base = utils.ErrPersistence
	}
	if payload.Error == "" {
		return fmt.Errorf("%w: status %d", base, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s", base, payload.Error)
}
