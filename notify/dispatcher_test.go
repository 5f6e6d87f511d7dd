package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commentData = CommentAddedData{
	ReporterName:  "Asha",
	IssueTitle:    "Overflowing drain",
	CommenterName: "Ravi",
	Snippet:       "Crew on site tomorrow",
	IssueURL:      "https://civic.test/issues/abc/",
}

func TestSMTPDispatcherNotConfigured(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "smtp.city.test"})
	assert.False(t, d.IsConfigured())
	assert.ErrorIs(t, d.Send(context.Background(), TemplateCommentAdded, commentData, []string{"a@city.test"}), ErrNotConfigured)
}

func TestSMTPDispatcherBuildsMultipartMessage(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "smtp.city.test", Port: "587", From: "noreply@city.test", FromName: "Civic Watch"})
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	d.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	require.NoError(t, d.Send(context.Background(), TemplateCommentAdded, commentData, []string{"asha@city.test"}))
	assert.Equal(t, "smtp.city.test:587", gotAddr)
	assert.Equal(t, "noreply@city.test", gotFrom)
	assert.Equal(t, []string{"asha@city.test"}, gotTo)
	assert.Contains(t, gotMsg, "From: Civic Watch <noreply@city.test>\r\n")
	assert.Contains(t, gotMsg, "Subject: New Comment on Your Issue: 'Overflowing drain...'\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, gotMsg, "Crew on site tomorrow")
}

func TestSMTPDispatcherSendsEachRecipientSeparately(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "smtp.city.test", Port: "587", From: "noreply@city.test"})
	staff := []string{"mod@city.test", "ravi@city.test", "priya@city.test"}
	sent := map[string]string{}
	d.sendMail = func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		require.Len(t, to, 1)
		sent[to[0]] = string(msg)
		if to[0] == "ravi@city.test" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}

	err := d.Send(context.Background(), TemplateCommentAdded, commentData, staff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ravi@city.test")

	require.Len(t, sent, 3)
	for _, to := range staff {
		assert.Contains(t, sent[to], "To: "+to+"\r\n")
		for _, other := range staff {
			if other != to {
				assert.NotContains(t, sent[to], other)
			}
		}
	}
}

func TestSMTPDispatcherSkipsEmptyRecipients(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "smtp.city.test", Port: "25", From: "noreply@city.test"})
	d.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not be called")
		return nil
	}
	assert.NoError(t, d.Send(context.Background(), TemplateCommentAdded, commentData, nil))
}

func TestSendGridDispatcher(t *testing.T) {
	var payload struct {
		Subject          string `json:"subject"`
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Content []struct {
			Type string `json:"type"`
		} `json:"content"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewSendGridDispatcher("sg-key", "noreply@city.test", "Civic Watch")
	d.host = srv.URL

	err := d.Send(context.Background(), TemplateCommentAdded, commentData, []string{"asha@city.test", "ops@city.test"})
	require.NoError(t, err)
	assert.Equal(t, "New Comment on Your Issue: 'Overflowing drain...'", payload.Subject)
	require.Len(t, payload.Personalizations, 2)
	assert.Equal(t, "ops@city.test", payload.Personalizations[1].To[0].Email)
	require.Len(t, payload.Content, 2)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
}

func TestSendGridDispatcherRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	d := NewSendGridDispatcher("wrong", "noreply@city.test", "")
	d.host = srv.URL

	err := d.Send(context.Background(), TemplateCommentAdded, commentData, []string{"asha@city.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestLogDispatcher(t *testing.T) {
	assert.NoError(t, LogDispatcher{}.Send(context.Background(), TemplateCommentAdded, commentData, []string{"a@city.test"}))
	assert.Error(t, LogDispatcher{}.Send(context.Background(), "missing", nil, nil))
}
