package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const testBotToken = "123456:test-token"

func initData(user string) string {
	v := url.Values{}
	v.Set("auth_date", "1700000000")
	v.Set("user", user)
	v.Set("hash", "ignored")
	return v.Encode()
}

// signedInitData is init data signed with token the way Telegram signs it.
func signedInitData(user, token string, authDate time.Time) string {
	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("user", user)
	v.Set("hash", initdata.Sign(map[string]string{"user": user}, token, authDate))
	return v.Encode()
}

func TestExtractTelegramData(t *testing.T) {
	tests := []struct {
		name      string
		initData  string
		expected  *TelegramUserData
		expectErr bool
	}{
		{
			name:     "Valid user",
			initData: initData(`{"id":5060715466,"first_name":"Bob","username":"defi_master"}`),
			expected: &TelegramUserData{
				ID:        5060715466,
				Username:  "defi_master",
				FirstName: "Bob",
				AuthDate:  time.Unix(1700000000, 0),
			},
		},
		{
			name:      "Missing user",
			initData:  "auth_date=1700000000",
			expectErr: true,
		},
		{
			name:      "User without id",
			initData:  initData(`{"first_name":"Bob"}`),
			expectErr: true,
		},
		{
			name:      "Bad auth date",
			initData:  "auth_date=yesterday&user=%7B%22id%22%3A1%7D",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ExtractTelegramData(tt.initData)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, data)
			assert.Equal(t, "Bob", data.DisplayName())
		})
	}
}

func TestTelegramAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(a *TelegramAuth) *gin.Engine {
		r := gin.New()
		r.GET("/me", a.TelegramAuthMiddleware(), func(c *gin.Context) {
			user, ok := UserFromContext(c)
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"id": user.ID})
		})
		return r
	}

	tests := []struct {
		name         string
		auth         *TelegramAuth
		header       string
		expectStatus int
	}{
		{"Missing header", NewTelegramAuth(testBotToken), "", http.StatusUnauthorized},
		{"Wrong scheme", NewTelegramAuth(testBotToken), "Bearer abc", http.StatusUnauthorized},
		{"Signed data is accepted", NewTelegramAuth(testBotToken), "Telegram " + signedInitData(`{"id":7}`, testBotToken, time.Now()), http.StatusOK},
		{"Forged hash is rejected", NewTelegramAuth(testBotToken), "Telegram " + initData(`{"id":424242}`), http.StatusUnauthorized},
		{"Data signed with another token is rejected", NewTelegramAuth(testBotToken), "Telegram " + signedInitData(`{"id":7}`, "other:token", time.Now()), http.StatusUnauthorized},
		{"Expired data is rejected", NewTelegramAuth(testBotToken), "Telegram " + signedInitData(`{"id":7}`, testBotToken, time.Now().Add(-48*time.Hour)), http.StatusUnauthorized},
		{"Insecure mode skips the signature", NewInsecureTelegramAuth(testBotToken), "Telegram " + initData(`{"id":7}`), http.StatusOK},
		{"Undecodable user", NewInsecureTelegramAuth(testBotToken), "Telegram " + initData(`{`), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			newRouter(tt.auth).ServeHTTP(w, req)

			assert.Equal(t, tt.expectStatus, w.Code)
		})
	}
}
