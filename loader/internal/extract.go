package internal

import (
	"path/filepath"
	"strings"

	"helprag/types"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SourceTag marks vectors produced from help-center HTML snapshots.
const SourceTag = "typeform_help_center_snapshot"

// Sub-headings that open footer boilerplate. Extraction stops at the first one.
var stopHeadings = []string{
	"was this article helpful?",
	"related articles",
}

// ExtractArticle parses one help-center page. The body is rebuilt from the
// sub-headings, list items and paragraphs that follow the page's <h1>.
func ExtractArticle(raw, sourcePath string) (types.Article, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return types.Article{}, types.Wrap(types.ErrExtraction, err)
	}

	root := findFirst(doc, atom.Main)
	if root == nil {
		root = findFirst(doc, atom.Body)
	}
	if root == nil {
		root = doc
	}

	titleNode := findFirst(root, atom.H1)
	title := sourcePath
	var parts []string
	if titleNode != nil {
		title = nodeText(titleNode)
		parts = walkContent(doc, titleNode)
	}

	rawID := title
	if rawID == "" {
		rawID = fileStem(sourcePath)
	}

	return types.Article{
		ID:      Sanitize(rawID, ArticleIDMaxLen),
		Title:   title,
		Content: strings.Join(parts, "\n\n"),
		Metadata: map[string]string{
			types.MetaSource:     SourceTag,
			types.MetaSourcePath: sourcePath,
		},
	}, nil
}

// walkContent visits every element after start in document order, the same
// traversal order as the parsed markup.
func walkContent(doc, start *html.Node) []string {
	var parts []string
	seen := false
	stopped := false

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if stopped {
			return
		}
		if n.Type == html.ElementNode {
			if n == start {
				seen = true
			} else if seen {
				if line, stop := contentLine(n); stop {
					stopped = true
					return
				} else if line != "" {
					parts = append(parts, line)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return parts
}

func contentLine(n *html.Node) (string, bool) {
	switch n.DataAtom {
	case atom.H2, atom.H3, atom.H4:
		if isStopHeading(nodeText(n)) {
			return "", true
		}
	}

	switch n.DataAtom {
	case atom.H2:
		return prefixed("## ", nodeText(n)), false
	case atom.H3:
		return prefixed("### ", nodeText(n)), false
	case atom.Li:
		return prefixed("- ", nodeText(n)), false
	case atom.P:
		return nodeText(n), false
	}
	return "", false
}

func prefixed(prefix, text string) string {
	if text == "" {
		return ""
	}
	return prefix + text
}

func isStopHeading(text string) bool {
	lower := strings.ToLower(text)
	for _, stop := range stopHeadings {
		if strings.Contains(lower, stop) {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// nodeText returns the element's text with whitespace collapsed to single
// spaces. Script and style contents are skipped.
func nodeText(n *html.Node) string {
	var words []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			words = append(words, strings.Fields(n.Data)...)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(words, " ")
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
