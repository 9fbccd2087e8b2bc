package store

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// FindAdminUser はメールアドレスに対応する管理者ロールを取得する。
// 登録されていない場合はnilを返す。
func (c *Client) FindAdminUser(ctx context.Context, token, email string) (*model.AdminUser, error) {
	const op = "find_admin_user"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		table:  "admin_users",
		query:  "select=role&" + encodeFilter("email", "eq", email) + "&limit=1",
		token:  token,
	})
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[struct {
		Role model.Role `json:"role"`
	}](op, resp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || !rows[0].Role.Valid() {
		return nil, nil
	}
	return &model.AdminUser{Email: email, Role: rows[0].Role}, nil
}

// FindUserWhatsApp はアカウント予約の利用者プロフィールからWhatsApp番号を取得する。
// プロフィールや番号がない場合は空文字列を返す。
func (c *Client) FindUserWhatsApp(ctx context.Context, token, userID string) (string, error) {
	const op = "find_user_whatsapp"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		table:  "profiles",
		query:  "select=whatsapp_number&" + encodeFilter("id", "eq", userID) + "&limit=1",
		token:  token,
	})
	if err != nil {
		return "", err
	}

	rows, err := decodeRows[struct {
		WhatsAppNumber *string `json:"whatsapp_number"`
	}](op, resp)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].WhatsAppNumber == nil {
		return "", nil
	}
	return strings.TrimSpace(*rows[0].WhatsAppNumber), nil
}
