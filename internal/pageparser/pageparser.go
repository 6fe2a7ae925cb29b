// Package pageparser reads a Ringing Room tower page to find the address of
// the socket server the tower is balanced onto. The address people type
// into a browser serves the page; the bells are rung on the server it names.
package pageparser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Iron-Ham/wheatley/internal/errors"
)

// serverIPPattern matches the `server_ip: "..."` entry the tower page sets
// in its inline script.
var serverIPPattern = regexp.MustCompile(`server_ip\s*:\s*["']([^"']*)["']`)

// TowerPageURL returns the page that describes towerID on httpServerURL.
func TowerPageURL(httpServerURL string, towerID int) (string, error) {
	u, err := url.JoinPath(httpServerURL, strconv.Itoa(towerID), "x")
	if err != nil {
		return "", errors.Wrapf(err, "building tower page url from %q", httpServerURL)
	}
	return u, nil
}

// LoadBalancingURL fetches the tower page for towerID and returns the
// socket server address it names.
func LoadBalancingURL(ctx context.Context, client *http.Client, httpServerURL string, towerID int) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	pageURL, err := TowerPageURL(httpServerURL, towerID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", errors.NewTowerError("building request", err).WithTowerID(towerID)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.NewTowerError("fetching tower page", err).WithTowerID(towerID)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.NewTowerError(
			fmt.Sprintf("tower page returned %s", resp.Status), errors.ErrServerIPNotFound,
		).WithTowerID(towerID).WithRetryable(resp.StatusCode >= 500)
	}

	addr, err := ExtractServerIP(resp.Body)
	if err != nil {
		return "", errors.NewTowerError("reading tower page", err).WithTowerID(towerID).WithRetryable(false)
	}
	return addr, nil
}

// ExtractServerIP returns the value of the page's server_ip entry. Inline
// scripts are searched first; a page that sets it anywhere else is then
// searched whole.
func ExtractServerIP(r io.Reader) (string, error) {
	page, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading tower page")
	}
	addr, err := scriptServerIP(page)
	if !errors.Is(err, errors.ErrServerIPNotFound) {
		return addr, err
	}
	if m := serverIPPattern.FindSubmatch(page); m != nil {
		return strings.TrimSpace(string(m[1])), nil
	}
	return "", errors.ErrServerIPNotFound
}

func scriptServerIP(page []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", errors.Wrap(err, "parsing tower page")
			}
			return "", errors.ErrServerIPNotFound
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			if m := serverIPPattern.FindSubmatch(z.Text()); m != nil {
				return strings.TrimSpace(string(m[1])), nil
			}
		}
	}
}
