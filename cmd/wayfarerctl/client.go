package main

import (
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
)

func newClient(apiURL string) *resty.Client {
	return resty.New().SetBaseURL(apiURL)
}

func runChat(apiURL, userID, message string, out io.Writer) error {
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	resp, err := newClient(apiURL).R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"user_id": userID, "message": message}).
		Post("/api/conversations")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	_, err = fmt.Fprintln(out, resp.String())
	return err
}

func runHistory(apiURL, userID string, limit int, out io.Writer) error {
	resp, err := newClient(apiURL).R().
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		Get(fmt.Sprintf("/api/users/%s/history", userID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	_, err = fmt.Fprintln(out, resp.String())
	return err
}

func runSearch(apiURL, userID, query string, k int, out io.Writer) error {
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	resp, err := newClient(apiURL).R().
		SetQueryParam("q", query).
		SetQueryParam("k", fmt.Sprintf("%d", k)).
		Get(fmt.Sprintf("/api/users/%s/memory/search", userID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	_, err = fmt.Fprintln(out, resp.String())
	return err
}

func runHealth(apiURL string, out io.Writer) error {
	resp, err := newClient(apiURL).R().Get("/api/health")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, resp.String())
	return err
}
