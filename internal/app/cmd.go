package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は管理画面サーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除ジョブを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はadmin_sessionsのマイグレーションを操作する。
	// 続く引数で up（既定）, down, version を選ぶ。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は/healthを確認して終了する。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を取り出す。
// 引数が空の場合はCommandServe。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, []string, error) {
	if len(args) == 0 {
		return CommandServe, nil, nil
	}

	for _, c := range commands {
		if args[0] == string(c) {
			return c, args[1:], nil
		}
	}

	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "", nil, fmt.Errorf("unknown command %q (available: %s)", args[0], strings.Join(names, ", "))
}
