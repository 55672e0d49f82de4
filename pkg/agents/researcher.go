package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/packhound/packhound/pkg/domain"
)

// fetchLimit caps resource bodies fed back to the model.
const fetchLimit = 64 << 10

const defaultRegistryURL = "https://pypi.org"

// ResearcherConfig tunes the researcher's outbound access.
type ResearcherConfig struct {
	HTTPClient  *http.Client
	RegistryURL string // package registry base, defaults to the public PyPI instance
}

// NewResearcher builds the worker that investigates external resources:
// URLs referenced by the corpus and the registry reputation of the package.
func NewResearcher(model Completer, cfg ResearcherConfig, opts ...Option) *Agent {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = defaultRegistryURL
	}
	r := &researcher{cfg: cfg}

	return NewAgent(domain.RoleResearcher, model, []Tool{
		{
			Name:        "fetch_url",
			Description: `fetch the content behind an http(s) URL; arguments: {"url": "<absolute URL>"}`,
			Run:         r.runFetchURL,
		},
		{
			Name:        "pypi_metadata",
			Description: `look up a package's registry metadata and release history; arguments: {"package": "<package name>"}`,
			Run:         r.runRegistryMetadata,
		},
	}, opts...)
}

type researcher struct {
	cfg ResearcherConfig
}

func (r *researcher) runFetchURL(ctx context.Context, args map[string]any) (string, error) {
	var a struct {
		URL string `mapstructure:"url"`
	}
	if err := mapstructure.Decode(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	u, err := url.Parse(a.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("not an absolute http(s) URL: %q", a.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchLimit+1))
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %d, Content-Type: %s\n\n", resp.StatusCode, resp.Header.Get("Content-Type"))
	if len(body) > fetchLimit {
		body = body[:fetchLimit]
		b.Write(body)
		b.WriteString("\n\n[content truncated]")
	} else {
		b.Write(body)
	}
	return b.String(), nil
}

// registryProject is the slice of the registry JSON API worth surfacing.
type registryProject struct {
	Info struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Summary     string            `json:"summary"`
		Author      string            `json:"author"`
		AuthorEmail string            `json:"author_email"`
		HomePage    string            `json:"home_page"`
		ProjectURLs map[string]string `json:"project_urls"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time"`
	} `json:"releases"`
}

func (r *researcher) runRegistryMetadata(ctx context.Context, args map[string]any) (string, error) {
	var a struct {
		Package string `mapstructure:"package"`
	}
	if err := mapstructure.Decode(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Package) == "" {
		return "", fmt.Errorf(`missing required argument "package"`)
	}

	endpoint := strings.TrimRight(r.cfg.RegistryURL, "/") + "/pypi/" + url.PathEscape(a.Package) + "/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Sprintf("Package %q is not published on the registry.", a.Package), nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned %d", resp.StatusCode)
	}

	var project registryProject
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&project); err != nil {
		return "", fmt.Errorf("registry response unreadable: %w", err)
	}
	return renderProject(&project), nil
}

func renderProject(p *registryProject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nLatest version: %s\nSummary: %s\n", p.Info.Name, p.Info.Version, p.Info.Summary)
	if p.Info.Author != "" || p.Info.AuthorEmail != "" {
		fmt.Fprintf(&b, "Author: %s %s\n", p.Info.Author, p.Info.AuthorEmail)
	}
	if p.Info.HomePage != "" {
		fmt.Fprintf(&b, "Homepage: %s\n", p.Info.HomePage)
	}
	for label, u := range p.Info.ProjectURLs {
		fmt.Fprintf(&b, "Project URL (%s): %s\n", label, u)
	}

	versions := make([]string, 0, len(p.Releases))
	for v := range p.Releases {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	fmt.Fprintf(&b, "Published releases: %d\n", len(versions))
	if len(versions) > 0 {
		first := versions[0]
		if len(p.Releases[first]) > 0 {
			fmt.Fprintf(&b, "Earliest release: %s uploaded %s\n", first, p.Releases[first][0].UploadTime)
		}
	}
	return b.String()
}
