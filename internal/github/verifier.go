// Package github verifies repository access against the GitHub REST
// API.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/domain"
)

// Verifier answers "may this token see this repository" with a single
// GET /repos/{owner}/{repo}. Any 2xx grants access; 401/403/404 deny
// it (GitHub reports private repositories the caller cannot see as
// 404). The client's timeout bounds a hung call so a slow verifier
// cannot stall a join forever.
type Verifier struct {
	BaseURL string
	Client  *http.Client
}

func NewVerifier(baseURL string, timeout time.Duration) *Verifier {
	return &Verifier{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (v *Verifier) VerifyAccess(ctx context.Context, token string, room domain.RoomKey) (bool, error) {
	url := fmt.Sprintf("%s/repos/%s", v.BaseURL, room)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		log.Debug().Str("module", "github").Str("room", string(room)).Int("status", resp.StatusCode).Msg("access denied")
		return false, nil
	default:
		return false, fmt.Errorf("github: unexpected status %d for %s", resp.StatusCode, room)
	}
}
