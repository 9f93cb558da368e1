package receivers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/tjstebbing/conductor"
)

const (
	SignatureHeader = "X-WowPay-Signature"
	TimestampHeader = "X-WowPay-Timestamp"
)

func NewCallbackSender(config wow.CallbackConfig, bus wow.EventSender) CallbackSender {
	return CallbackSender{
		Rec:          make(chan wow.Message, 1000),
		Path:         config.Path,
		HMACSecret:   config.HMACSecret,
		Bus:          bus,
		client:       &http.Client{Timeout: 30 * time.Second},
		maxRetries:   6,
		initialDelay: 1 * time.Second,
		maxDelay:     32 * time.Second,
	}
}

// CallbackSender POSTs bus messages to a merchant URL, signed with
// HMAC-SHA256 over "<timestamp>.<body>" when a secret is configured.
type CallbackSender struct {
	// incomming msgs
	Rec        chan wow.Message
	Path       string
	HMACSecret string
	Bus        wow.EventSender

	client       *http.Client
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// Implements wow.MessageSubscriber
func (s CallbackSender) GetChan() chan wow.Message {
	return s.Rec
}

// Implements conductor.Service
func (s CallbackSender) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				close(stopped)
				return
			case msg, ok := <-s.Rec:
				if !ok {
					<-stop
					close(stopped)
					return
				}
				if msg.EventType.Type() == "SYS" {
					continue // our own delivery reports would loop
				}
				body, err := json.Marshal(msg)
				if err != nil {
					s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("CallbackSender: Failed to serialize object to JSON: %v", err))
					continue
				}
				// delivery retries in the background so one slow endpoint
				// does not hold up the queue.
				go s.postWithRetry(body)
			}
		}
	}()
	return nil
}

// Reads config and sets up any configured callbacks
func SetupCallbacks(cond *conductor.Conductor, bus wow.MessageBus, conf wow.Config) {
	for name, c := range conf.Callbacks {
		s := NewCallbackSender(c, bus)
		cond.Service(fmt.Sprintf("Callback sender for: %s", c.Path), s)

		types, invalid := wow.EventTypesFromNames(c.Types)
		for _, t := range invalid {
			fmt.Printf("⚠️  Callback %s: ignoring invalid message type: %s\n", name, t)
		}
		bus.Register(s, types...)
	}
}

func generateSha256HMAC(timestamp string, payload []byte, secret string) string {
	if secret == "" {
		return ""
	}

	dataToSign := []byte(fmt.Sprintf("%s.%s", timestamp, string(payload)))
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(dataToSign)

	return hex.EncodeToString(h.Sum(nil))
}

// post makes one delivery attempt.
func (s CallbackSender) post(body []byte) error {
	req, err := http.NewRequest("POST", s.Path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.HMACSecret != "" {
		timestampStr := fmt.Sprintf("%d", time.Now().Unix())
		signature := generateSha256HMAC(timestampStr, body, s.HMACSecret)
		req.Header.Set(SignatureHeader, fmt.Sprintf("sha256=%s", signature))
		req.Header.Set(TimestampHeader, timestampStr)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (s CallbackSender) postWithRetry(body []byte) error {
	retryCount := 0
	delay := s.initialDelay

	for retryCount <= s.maxRetries {
		err := s.post(body)
		if err == nil {
			s.Bus.Send(wow.SYS_MSG, fmt.Sprintf("CallbackSender: success! %s", s.Path))
			return nil
		}

		s.Bus.Send(wow.SYS_MSG, fmt.Sprintf("CallbackSender: Request failed (attempt %d/%d). Retrying in %v. Error: %v", retryCount+1, s.maxRetries+1, delay, err))
		time.Sleep(delay)

		// Increase delay exponentially, with a maximum limit
		delay *= 2
		if delay > s.maxDelay {
			delay = s.maxDelay
		}

		retryCount++
	}

	s.Bus.Send(wow.SYS_ERR, fmt.Sprintf("CallbackSender: Request failed after maximum retries. Aborting: %s", s.Path))
	return fmt.Errorf("callback %s: gave up after %d attempts", s.Path, s.maxRetries+1)
}
