package backend

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gianlucasb/hallucinator/internal/verify/normalize"
	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// doJSON issues a GET request and decodes a JSON body into dst, folding
// transport, HTTP-status, and decode failures into the right ErrorKind.
func doJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, dst any) (types.DbOutcome, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.Error(types.ErrorOther, err.Error()), false
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.Error(types.ErrorTimeout, err.Error()), false
		}
		return types.Error(types.ErrorOther, err.Error()), false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Error(types.ErrorOther, err.Error()), false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyHTTPError(resp.StatusCode, string(body)), false
	}
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		return types.Error(types.ErrorRateLimited, "Retry-After: "+retryAfter), false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return types.Error(types.ErrorParse, err.Error()), false
	}
	return types.DbOutcome{}, true
}

// ---------------------------------------------------------------------
// CrossRef
// ---------------------------------------------------------------------

// crossRefBaseURL is the production CrossRef works endpoint; overridden
// in CrossRef.BaseURL by tests against an httptest.Server.
const crossRefBaseURL = "https://api.crossref.org/works"

// CrossRef queries the public CrossRef works API.
type CrossRef struct {
	Client  *http.Client
	BaseURL string // empty means crossRefBaseURL
}

func (b *CrossRef) Name() string  { return "CrossRef" }
func (b *CrossRef) IsLocal() bool { return false }
func (b *CrossRef) baseURL() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return crossRefBaseURL
}
func (b *CrossRef) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	u := b.baseURL() + "?rows=5&query.bibliographic=" + url.QueryEscape(title)

	var resp struct {
		Message struct {
			Items []struct {
				Title   []string `json:"title"`
				Author  []struct {
					Given  string `json:"given"`
					Family string `json:"family"`
				} `json:"author"`
				URL string `json:"URL"`
			} `json:"items"`
		} `json:"message"`
	}

	if outcome, ok := doJSON(ctx, b.Client, u, nil, &resp); !ok {
		return outcome, nil
	}

	for _, item := range resp.Message.Items {
		if len(item.Title) == 0 {
			continue
		}
		foundTitle := item.Title[0]
		if !normalize.TitlesMatch(title, foundTitle) {
			continue
		}
		authors := make([]string, 0, len(item.Author))
		for _, a := range item.Author {
			name := strings.TrimSpace(a.Given + " " + a.Family)
			if name != "" {
				authors = append(authors, name)
			}
		}
		if len(authors) == 0 {
			continue // empty-authors: let other backends verify
		}
		return types.Found(foundTitle, authors, item.URL), nil
	}
	return types.NotFound(), nil
}

// ---------------------------------------------------------------------
// arXiv
// ---------------------------------------------------------------------

const arxivBaseURL = "http://export.arxiv.org/api/query"

// ArXiv queries the arXiv Atom export API.
type ArXiv struct {
	Client  *http.Client
	BaseURL string // empty means arxivBaseURL
}

func (b *ArXiv) Name() string  { return "arXiv" }
func (b *ArXiv) IsLocal() bool { return false }
func (b *ArXiv) baseURL() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return arxivBaseURL
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title   string        `xml:"title"`
	Authors []arxivAuthor `xml:"author"`
	ID      string        `xml:"id"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

func (b *ArXiv) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	u := b.baseURL() + "?max_results=5&search_query=ti:" + url.QueryEscape(`"`+title+`"`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.Error(types.ErrorOther, err.Error()), nil
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.Error(types.ErrorTimeout, err.Error()), nil
		}
		return types.Error(types.ErrorOther, err.Error()), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Error(types.ErrorOther, err.Error()), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyHTTPError(resp.StatusCode, string(body)), nil
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return types.Error(types.ErrorParse, err.Error()), nil
	}

	for _, entry := range feed.Entries {
		foundTitle := collapseWhitespace(entry.Title)
		if !normalize.TitlesMatch(title, foundTitle) {
			continue
		}
		authors := make([]string, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		if len(authors) == 0 {
			continue
		}
		return types.Found(foundTitle, authors, entry.ID), nil
	}
	return types.NotFound(), nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ---------------------------------------------------------------------
// Semantic Scholar
// ---------------------------------------------------------------------

const semanticScholarBaseURL = "https://api.semanticscholar.org/graph/v1/paper/search"

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	Client  *http.Client
	APIKey  string // empty means the unauthenticated, lower-rate tier
	BaseURL string // empty means semanticScholarBaseURL
}

func (b *SemanticScholar) Name() string  { return "Semantic Scholar" }
func (b *SemanticScholar) IsLocal() bool { return false }
func (b *SemanticScholar) baseURL() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return semanticScholarBaseURL
}

func (b *SemanticScholar) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	u := b.baseURL() + "?limit=5&fields=title,authors,url&query=" + url.QueryEscape(title)

	var headers map[string]string
	if b.APIKey != "" {
		headers = map[string]string{"x-api-key": b.APIKey}
	}

	var resp struct {
		Data []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Authors []struct {
				Name string `json:"name"`
			} `json:"authors"`
		} `json:"data"`
	}

	if outcome, ok := doJSON(ctx, b.Client, u, headers, &resp); !ok {
		return outcome, nil
	}

	for _, paper := range resp.Data {
		if !normalize.TitlesMatch(title, paper.Title) {
			continue
		}
		authors := make([]string, 0, len(paper.Authors))
		for _, a := range paper.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		if len(authors) == 0 {
			continue
		}
		return types.Found(paper.Title, authors, paper.URL), nil
	}
	return types.NotFound(), nil
}

// ---------------------------------------------------------------------
// OpenAlex (online)
// ---------------------------------------------------------------------

// OpenAlex queries the OpenAlex works API. It is shared and read-only for
// the duration of a run; the opt-in author-mismatch downgrade is applied
// by the reference checker, not here, so this backend carries no
// per-call mutable state.
const openAlexBaseURL = "https://api.openalex.org/works"

type OpenAlex struct {
	Client  *http.Client
	APIKey  string // "mailto"/API key, raises the polite-pool quota
	BaseURL string // empty means openAlexBaseURL
}

func (b *OpenAlex) Name() string  { return "OpenAlex" }
func (b *OpenAlex) IsLocal() bool { return false }
func (b *OpenAlex) baseURL() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return openAlexBaseURL
}

func (b *OpenAlex) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	q := url.Values{}
	q.Set("search", title)
	q.Set("per_page", "5")
	if b.APIKey != "" {
		q.Set("api_key", b.APIKey)
	}
	u := b.baseURL() + "?" + q.Encode()

	var resp struct {
		Results []struct {
			Title          string `json:"title"`
			ID             string `json:"id"`
			Authorships    []struct {
				Author struct {
					DisplayName string `json:"display_name"`
				} `json:"author"`
			} `json:"authorships"`
		} `json:"results"`
	}

	if outcome, ok := doJSON(ctx, b.Client, u, nil, &resp); !ok {
		return outcome, nil
	}

	for _, work := range resp.Results {
		if !normalize.TitlesMatch(title, work.Title) {
			continue
		}
		authors := make([]string, 0, len(work.Authorships))
		for _, a := range work.Authorships {
			if a.Author.DisplayName != "" {
				authors = append(authors, a.Author.DisplayName)
			}
		}
		if len(authors) == 0 {
			continue
		}
		return types.Found(work.Title, authors, work.ID), nil
	}
	return types.NotFound(), nil
}

// AnyAuthorOverlaps reports whether any name in found matches any name in
// reference after normalization. The reference checker uses this to
// apply the opt-in check_openalex_authors downgrade.
func AnyAuthorOverlaps(found, reference []string) bool {
	ref := make(map[string]bool, len(reference))
	for _, a := range reference {
		ref[normalize.Title(a)] = true
	}
	for _, a := range found {
		if ref[normalize.Title(a)] {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// DBLP (online)
// ---------------------------------------------------------------------

const dblpOnlineBaseURL = "https://dblp.org/search/publ/api"

// DblpOnline queries the public DBLP publication search API.
type DblpOnline struct {
	Client  *http.Client
	BaseURL string // empty means dblpOnlineBaseURL
}

func (b *DblpOnline) Name() string  { return "DBLP" }
func (b *DblpOnline) IsLocal() bool { return false }
func (b *DblpOnline) baseURL() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return dblpOnlineBaseURL
}

func (b *DblpOnline) Query(ctx context.Context, title string) (types.DbOutcome, error) {
	u := b.baseURL() + "?format=json&h=5&q=" + url.QueryEscape(queryWords(title, 6))

	var resp struct {
		Result struct {
			Hits struct {
				Hit []struct {
					Info struct {
						Title   string          `json:"title"`
						URL     string          `json:"url"`
						Authors json.RawMessage `json:"authors"`
					} `json:"info"`
				} `json:"hit"`
			} `json:"hits"`
		} `json:"result"`
	}

	if outcome, ok := doJSON(ctx, b.Client, u, nil, &resp); !ok {
		return outcome, nil
	}

	for _, hit := range resp.Result.Hits.Hit {
		if !normalize.TitlesMatch(title, hit.Info.Title) {
			continue
		}
		authors := parseDblpAuthors(hit.Info.Authors)
		if len(authors) == 0 {
			continue
		}
		return types.Found(hit.Info.Title, stripDblpSuffixes(authors), hit.Info.URL), nil
	}
	return types.NotFound(), nil
}

// queryWords keeps the first n words of title: DBLP's search ranks
// better on a handful of salient words than the full title string.
func queryWords(title string, n int) string {
	fields := strings.Fields(title)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// parseDblpAuthors handles DBLP's inconsistent JSON shape: a single author
// serializes as an object, multiple as an array, and each entry may be a
// bare string or an object with a "text" field.
func parseDblpAuthors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var wrapper struct {
		Author json.RawMessage `json:"author"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || len(wrapper.Author) == 0 {
		return nil
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(wrapper.Author, &arr); err == nil {
		authors := make([]string, 0, len(arr))
		for _, item := range arr {
			if name := decodeDblpAuthorEntry(item); name != "" {
				authors = append(authors, name)
			}
		}
		return authors
	}

	if name := decodeDblpAuthorEntry(wrapper.Author); name != "" {
		return []string{name}
	}
	return nil
}

func decodeDblpAuthorEntry(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}

func stripDblpSuffixes(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = stripDblpSuffix(n)
	}
	return out
}

// stripDblpSuffix removes DBLP's 4-digit disambiguation suffix (e.g.
// "Nuno Santos 0001" -> "Nuno Santos"). See https://dblp.org/faq/1474704.html.
func stripDblpSuffix(name string) string {
	name = strings.TrimSpace(name)
	if len(name) <= 5 {
		return name
	}
	prefix, suffix := name[:len(name)-5], name[len(name)-5:]
	if suffix[0] != ' ' {
		return name
	}
	digits := suffix[1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return name
		}
	}
	return prefix
}
