// Command soulgood はSoulgoodのAPIサーバーと端末用クライアントを起動する。
//
//	soulgood [serve]      APIサーバー（既定）
//	soulgood migrate      マイグレーションの適用
//	soulgood healthcheck  コンテナのヘルスチェック
//	soulgood client ...   カート/お気に入りクライアント
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/soulgood/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
