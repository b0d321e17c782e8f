package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/utils"
)

const (
	RepoOwner = "Zacy-Sokach"
	RepoName  = "CustardPie"
	Repo      = RepoOwner + "/" + RepoName

	defaultAPIBase = "https://api.github.com"
)

type ReleaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result 一次版本检查的结果
type Result struct {
	Current   string
	Latest    string
	URL       string
	HasUpdate bool
}

type Checker struct {
	client  utils.Doer
	apiBase string
	repo    string
}

type Option func(*Checker)

// WithHTTPClient 替换默认的 HTTP 客户端
func WithHTTPClient(d utils.Doer) Option {
	return func(c *Checker) {
		c.client = d
	}
}

// WithAPIBase 替换 GitHub API 地址，主要用于测试
func WithAPIBase(base string) Option {
	return func(c *Checker) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

// WithRepo 指定查询的仓库（owner/name），为空时使用 Repo
func WithRepo(repo string) Option {
	return func(c *Checker) {
		if repo = strings.Trim(repo, "/ "); repo != "" {
			c.repo = repo
		}
	}
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiBase: defaultAPIBase,
		repo:    Repo,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) GetLatestRelease(ctx context.Context) (ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ReleaseInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ReleaseInfo{}, fmt.Errorf("failed to fetch latest version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ReleaseInfo{}, fmt.Errorf("no release found for %s (GitHub API returned status 404), set update_repo in the config", c.repo)
	}
	if resp.StatusCode != http.StatusOK {
		return ReleaseInfo{}, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return ReleaseInfo{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return release, nil
}

// CheckForUpdate 比较当前版本和最新发布版本。
// 开发版本（"dev" 或空）总是视为需要更新。
func (c *Checker) CheckForUpdate(ctx context.Context, currentVersion string) (Result, error) {
	release, err := c.GetLatestRelease(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Current: currentVersion,
		Latest:  release.TagName,
		URL:     release.HTMLURL,
	}
	if currentVersion == "" || currentVersion == "dev" {
		res.HasUpdate = release.TagName != ""
		return res, nil
	}
	res.HasUpdate = compareVersions(currentVersion, release.TagName) < 0
	return res, nil
}

func compareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")

	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		var p1, p2 int
		fmt.Sscanf(parts1[i], "%d", &p1)
		fmt.Sscanf(parts2[i], "%d", &p2)

		if p1 < p2 {
			return -1
		}
		if p1 > p2 {
			return 1
		}
	}

	if len(parts1) < len(parts2) {
		return -1
	}
	if len(parts1) > len(parts2) {
		return 1
	}

	return 0
}
