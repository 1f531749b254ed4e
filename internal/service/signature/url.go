package signature

import (
	"net/url"
	"strconv"
	"strings"
)

// 签名URL查询参数名
const (
	DefaultQueryVar  = "gf-signature"
	ParamFormID      = "form-id"
	ParamFieldID     = "field-id"
	ParamHash        = "hash"
	ParamTransparent = "t"
	ParamDownload    = "dl"
)

// URLParams 签名URL携带的参数
type URLParams struct {
	Filename    string
	FormID      int
	FieldID     string
	Hash        string
	Transparent bool
	Download    bool
}

// ParseURLParams 从查询参数中解析签名请求
// form-id无法解析时为0，后续的字段存在性检查会拒绝它
func ParseURLParams(q url.Values, queryVar string) URLParams {
	formID, _ := strconv.Atoi(q.Get(ParamFormID))
	return URLParams{
		Filename:    q.Get(queryVar),
		FormID:      formID,
		FieldID:     q.Get(ParamFieldID),
		Hash:        q.Get(ParamHash),
		Transparent: q.Get(ParamTransparent) == "1",
		Download:    q.Get(ParamDownload) == "1",
	}
}

// URLRewriter 替换构建出的签名URL，例如改写为CDN地址
// 改写后的URL必须保持同样的查询参数约定
type URLRewriter interface {
	Rewrite(rawURL string, params URLParams) string
}

// IdentityRewriter 原样返回
type IdentityRewriter struct{}

// Rewrite 实现URLRewriter
func (IdentityRewriter) Rewrite(rawURL string, _ URLParams) string { return rawURL }

// PrefixRewriter 把URL的协议与主机替换为CDN地址，CDN路径作为前缀保留
type PrefixRewriter struct {
	base *url.URL
}

// NewPrefixRewriter 创建CDN改写器
func NewPrefixRewriter(cdnBaseURL string) (*PrefixRewriter, error) {
	u, err := url.Parse(cdnBaseURL)
	if err != nil {
		return nil, err
	}
	return &PrefixRewriter{base: u}, nil
}

// Rewrite 实现URLRewriter，无法解析的URL原样返回
func (r *PrefixRewriter) Rewrite(rawURL string, _ URLParams) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = r.base.Scheme
	u.Host = r.base.Host
	u.Path = strings.TrimSuffix(r.base.Path, "/") + u.Path
	return u.String()
}

// URLBuilder 构建签名访问URL
type URLBuilder struct {
	endpoint string
	queryVar string
	signer   *TokenSigner
	rewriter URLRewriter
}

// NewURLBuilder 创建URL构建器
// 参数:
//   - baseURL: 公开访问的协议和主机，如 https://forms.example.com
//   - endpointPath: 图片访问路由，如 /signature
//   - queryVar: 携带文件名的查询参数名，空时使用gf-signature
//   - signer: 令牌签名器
//   - rewriter: URL改写策略，nil时不改写
func NewURLBuilder(baseURL, endpointPath, queryVar string, signer *TokenSigner, rewriter URLRewriter) *URLBuilder {
	if queryVar == "" {
		queryVar = DefaultQueryVar
	}
	if rewriter == nil {
		rewriter = IdentityRewriter{}
	}
	return &URLBuilder{
		endpoint: strings.TrimSuffix(baseURL, "/") + endpointPath,
		queryVar: queryVar,
		signer:   signer,
		rewriter: rewriter,
	}
}

// QueryVar 返回文件名查询参数名
func (b *URLBuilder) QueryVar() string {
	return b.queryVar
}

// Build 构建签名URL，文件名为空时返回空字符串
func (b *URLBuilder) Build(filename string, formID int, fieldID string, transparent, download bool) string {
	if filename == "" {
		return ""
	}

	params := URLParams{
		Filename:    filename,
		FormID:      formID,
		FieldID:     fieldID,
		Hash:        b.signer.Generate(formID, fieldID, filename),
		Transparent: transparent,
		Download:    download,
	}

	q := url.Values{}
	q.Set(b.queryVar, params.Filename)
	q.Set(ParamFormID, strconv.Itoa(params.FormID))
	q.Set(ParamFieldID, params.FieldID)
	q.Set(ParamHash, params.Hash)
	if transparent {
		q.Set(ParamTransparent, "1")
	}
	if download {
		q.Set(ParamDownload, "1")
	}

	return b.rewriter.Rewrite(b.endpoint+"?"+q.Encode(), params)
}
