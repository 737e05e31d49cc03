package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FormError is the error half of a failed form submission.
type FormError struct {
	Status  int
	Message string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Submit posts a form intent ("new", "upVote", "downVote") and returns a
// *FormError when the board rejects it.
func Submit(ctx context.Context, hc *http.Client, baseURL, intent string, fields url.Values) error {
	form := url.Values{}
	for k, v := range fields {
		form[k] = v
	}
	form.Set("intent", intent)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+SnapshotPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Form struct {
			State string  `json:"state"`
			Error *string `json:"error"`
		} `json:"form"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode form state (%s): %w", resp.Status, err)
	}
	if body.Form.State == "success" {
		return nil
	}
	msg := "Something went wrong"
	if body.Form.Error != nil {
		msg = *body.Form.Error
	}
	return &FormError{Status: resp.StatusCode, Message: msg}
}
