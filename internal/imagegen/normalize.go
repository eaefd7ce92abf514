package imagegen

import (
	"fmt"
	"strings"
)

// NormalizeOutput は画像生成APIの出力を平坦なURLリストへ正規化します。
// 取りうる形は、URL文字列1つ、URLのリスト、urlフィールドを持つオブジェクト、
// またはそれらのリストなのだ。どれにも当てはまらなければエラーなのだ。
func NormalizeOutput(output any) ([]string, error) {
	switch v := output.(type) {
	case string:
		if !isHTTPURL(v) {
			return nil, fmt.Errorf("出力のURLが http/https で始まっていないのだ: %q", v)
		}
		return []string{v}, nil

	case []string:
		return normalizeList(anySlice(v))

	case []any:
		return normalizeList(v)

	case map[string]any:
		url, err := urlFromObject(v)
		if err != nil {
			return nil, err
		}
		return []string{url}, nil

	default:
		return nil, fmt.Errorf("画像生成APIの出力形式を解釈できないのだ: %T", output)
	}
}

func normalizeList(items []any) ([]string, error) {
	var urls []string
	for _, item := range items {
		switch elem := item.(type) {
		case string:
			if isHTTPURL(elem) {
				urls = append(urls, elem)
			}
		case map[string]any:
			url, err := urlFromObject(elem)
			if err != nil {
				continue
			}
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("出力リストに有効なURLが1つもないのだ")
	}
	return urls, nil
}

func urlFromObject(obj map[string]any) (string, error) {
	raw, ok := obj["url"]
	if !ok {
		return "", fmt.Errorf("出力オブジェクトに url フィールドがないのだ")
	}
	url, ok := raw.(string)
	if !ok || !isHTTPURL(url) {
		return "", fmt.Errorf("出力オブジェクトの url が不正なのだ: %v", raw)
	}
	return url, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func anySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
