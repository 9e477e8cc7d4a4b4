package pagestyle

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
)

const maxImageHeaderBytes = 1 << 20

// imageSize is the intrinsic pixel size of a decoded image.
type imageSize struct {
	W int
	H int
}

var errUnsupportedImageSource = errors.New("unsupported image source")

// loadImageSize reads just enough of an image to learn its dimensions.
func loadImageSize(ctx context.Context, client *http.Client, base, src string) (imageSize, error) {
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		raw, err := decodeDataURI(src)
		if err != nil {
			return imageSize{}, err
		}
		return decodeImageSize(bytes.NewReader(raw))
	}
	abs := resolveAbsURL(base, src)
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return imageSize{}, fmt.Errorf("%w: %q", errUnsupportedImageSource, src)
	}
	resp, err := getResource(ctx, client, abs, "image/webp,image/png,image/jpeg,image/*;q=0.8")
	if err != nil {
		return imageSize{}, err
	}
	defer resp.Body.Close()
	return decodeImageSize(io.LimitReader(resp.Body, maxImageHeaderBytes))
}

func decodeImageSize(r io.Reader) (imageSize, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return imageSize{}, err
	}
	return imageSize{W: cfg.Width, H: cfg.Height}, nil
}

// decodeDataURI decodes data:[<mediatype>][;base64],<data>.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma == -1 {
		return nil, fmt.Errorf("%w: malformed data uri", errUnsupportedImageSource)
	}
	meta := uri[len("data:"):comma]
	data := uri[comma+1:]
	if strings.Contains(strings.ToLower(meta), ";base64") {
		return base64.StdEncoding.DecodeString(data)
	}
	s, err := url.PathUnescape(data)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// imageHints maps <img> width/height attributes, or failing that the decoded
// intrinsic size, to presentational width/height declarations.
func imageHints(imgs map[*html.Node]imageSize, doc *html.Node) map[*html.Node][]cssDeclaration {
	hints := map[*html.Node][]cssDeclaration{}
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "img") {
			size, known := imgs[n]
			for _, dim := range []string{"width", "height"} {
				if px, ok := dimensionAttr(getAttr(n, dim)); ok {
					hints[n] = append(hints[n], cssDeclaration{property: dim, value: px})
					continue
				}
				if !known {
					continue
				}
				v := size.W
				if dim == "height" {
					v = size.H
				}
				hints[n] = append(hints[n], cssDeclaration{property: dim, value: strconv.Itoa(v) + "px"})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return hints
}

func dimensionAttr(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if pct, ok := strings.CutSuffix(v, "%"); ok {
		if _, err := strconv.ParseFloat(pct, 64); err == nil {
			return v, true
		}
		return "", false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return "", false
	}
	return strconv.Itoa(n) + "px", true
}
