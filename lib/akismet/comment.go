package akismet

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-pkgz/rest/realip"
)

// Comment is the content to check or report. Empty fields are treated as absent and not sent,
// except UserIP which Akismet expects in every request.
type Comment struct {
	UserIP      string            // ip address of the commenter
	UserAgent   string            // user agent of the commenter's browser
	Referrer    string            // content of the HTTP_REFERER header
	Permalink   string            // permanent location of the entry commented on
	Type        string            // comment type, see Type* constants
	Author      string            // name submitted with the comment
	AuthorEmail string            // email submitted with the comment
	AuthorURL   string            // commenter url
	Content     string            // the content submitted
	Extra       map[string]string // other request attributes, sent as is
}

// headers never copied to Comment.Extra
var skipHeaders = map[string]bool{"Cookie": true, "Authorization": true, "Proxy-Authorization": true}

// CommentFromRequest makes a Comment with the commenter's ip, user agent and referrer taken from
// the incoming request. All other headers, except credentials, go to Extra with HTTP_* names,
// the way Akismet expects server environment. Callers add the content fields.
func CommentFromRequest(r *http.Request) Comment {
	ip, err := realip.Get(r)
	if err != nil {
		log.Printf("[DEBUG] can't get ip from request, %v", err)
	}
	res := Comment{UserIP: ip, UserAgent: r.UserAgent(), Referrer: r.Referer(), Extra: map[string]string{}}
	for k, vals := range r.Header {
		if skipHeaders[k] || len(vals) == 0 {
			continue
		}
		res.Extra["HTTP_"+strings.ToUpper(strings.ReplaceAll(k, "-", "_"))] = strings.Join(vals, ", ")
	}
	return res
}

// values makes form params for a comment call. Extra pairs with empty key are skipped,
// empty values are sent as is.
func (c Comment) values(blog string) url.Values {
	res := url.Values{}
	res.Set(paramBlog, blog)
	res.Set(paramUserIP, c.UserIP)

	optional := []struct{ key, val string }{
		{paramUserAgent, c.UserAgent},
		{paramReferrer, c.Referrer},
		{paramPermalink, c.Permalink},
		{paramType, c.Type},
		{paramAuthor, c.Author},
		{paramAuthorEmail, c.AuthorEmail},
		{paramAuthorURL, c.AuthorURL},
		{paramContent, c.Content},
	}
	for _, p := range optional {
		if p.val != "" {
			res.Set(p.key, p.val)
		}
	}

	for k, v := range c.Extra {
		if k == "" {
			continue
		}
		res.Add(k, v)
	}
	return res
}
