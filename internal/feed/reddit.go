package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/logger"
)

// maxSeen ограничивает память об уже отданных постах
const maxSeen = 10000

const (
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL  = "https://oauth.reddit.com"
)

// Reddit читает новые посты и комментарии сабреддита через OAuth (application only)
type Reddit struct {
	log     *zap.Logger
	cfg     config.FeedConfig
	http    *http.Client
	authURL string
	apiURL  string
	now     func() time.Time

	token   string
	expires time.Time
	seen    map[string]struct{}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Name     string `json:"name"`
				Title    string `json:"title"`
				Selftext string `json:"selftext"`
				Body     string `json:"body"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewReddit создает источник. Без учетных данных возвращает ErrUnavailable.
func NewReddit(cfg config.FeedConfig, log *zap.Logger) (*Reddit, error) {
	if !cfg.Available() {
		return nil, ErrUnavailable
	}
	return &Reddit{
		log:     logger.OrNop(log).Named("reddit"),
		cfg:     cfg,
		http:    &http.Client{Timeout: 15 * time.Second},
		authURL: defaultAuthURL,
		apiURL:  defaultAPIURL,
		now:     time.Now,
		seen:    make(map[string]struct{}),
	}, nil
}

// Fetch возвращает тексты, которые еще не отдавались ранее
func (r *Reddit) Fetch(ctx context.Context) ([]string, error) {
	if err := r.authorize(ctx); err != nil {
		return nil, err
	}

	paths := []string{"/r/" + url.PathEscape(r.cfg.Subreddit) + "/new"}
	if r.cfg.Comments {
		paths = append(paths, "/r/"+url.PathEscape(r.cfg.Subreddit)+"/comments")
	}

	if len(r.seen) > maxSeen {
		r.seen = make(map[string]struct{})
	}

	var texts []string
	for _, p := range paths {
		var l listing
		if err := r.get(ctx, p, &l); err != nil {
			return texts, err
		}
		for _, child := range l.Data.Children {
			d := child.Data
			if _, ok := r.seen[d.Name]; ok && d.Name != "" {
				continue
			}
			r.seen[d.Name] = struct{}{}
			for _, s := range []string{d.Title, d.Selftext, d.Body} {
				if strings.TrimSpace(s) != "" {
					texts = append(texts, s)
				}
			}
		}
	}

	r.log.Debug("Получены тексты", zap.String("subreddit", r.cfg.Subreddit), zap.Int("count", len(texts)))
	return texts, nil
}

// authorize получает токен приложения, если текущий отсутствует или истекает
func (r *Reddit) authorize(ctx context.Context) error {
	if r.token != "" && r.now().Before(r.expires.Add(-time.Minute)) {
		return nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса токена: %w", err)
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	var tok tokenResponse
	if err := r.do(req, &tok); err != nil {
		return fmt.Errorf("ошибка получения токена reddit: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("reddit не выдал токен: %s", tok.Error)
	}

	r.token = tok.AccessToken
	r.expires = r.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return nil
}

func (r *Reddit) get(ctx context.Context, path string, out any) error {
	u := r.apiURL + path + "?limit=" + strconv.Itoa(r.cfg.Limit) + "&raw_json=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+r.token)
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	if err := r.do(req, out); err != nil {
		return fmt.Errorf("ошибка запроса %s: %w", path, err)
	}
	return nil
}

func (r *Reddit) do(req *http.Request, out any) error {
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("статус %d", resp.StatusCode)
	}
	return sonic.Unmarshal(body, out)
}
