// Package security はアプリケーションのセキュリティ機能を提供する。
//
// FieldSanitizer はクライアントから送られるカート行の表示用フィールド（商品名・画像）から
// マークアップを取り除く。値はそのまま他の端末で表示されるため、保存前に適用する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// FieldSanitizer はテキストフィールドのサニタイズ機能のインターフェースを定義する。
type FieldSanitizer interface {
	// SanitizeText は全てのタグを除去したプレーンテキストを返す。
	// script/styleの中身も除去される。前後の空白は取り除く。
	SanitizeText(raw string) string

	// SanitizeImage は画像参照として安全な値を返す。
	// 相対パスおよびhttp/httpsのURLのみを許可し、それ以外は空文字列を返す。
	SanitizeImage(raw string) string
}

// fieldSanitizer はFieldSanitizerの実装。
// bluemondayのポリシーはゴルーチン間で共有しても安全。
type fieldSanitizer struct {
	policy *bluemonday.Policy
}

// NewFieldSanitizer はFieldSanitizerの新しいインスタンスを生成する。
// StrictPolicyで全ての要素と属性を除去する。
func NewFieldSanitizer() *fieldSanitizer {
	return &fieldSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はタグを除去する。
// bluemondayは残ったテキストをHTMLエスケープするため、保存用にアンエスケープして戻す
// （"Mac & Cheese" が "Mac &amp; Cheese" にならないように）。
func (s *fieldSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.TrimSpace(cleaned)
}

// SanitizeImage は画像参照をサニタイズする。
func (s *fieldSanitizer) SanitizeImage(raw string) string {
	cleaned := s.SanitizeText(raw)
	if cleaned == "" {
		return ""
	}

	u, err := url.Parse(cleaned)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		// 相対パス（例: /images/salad.jpg）。"//host" 形式は外部参照なので拒否する
		if u.Host != "" {
			return ""
		}
		return cleaned
	case "http", "https":
		return cleaned
	default:
		return ""
	}
}

var _ FieldSanitizer = (*fieldSanitizer)(nil)
