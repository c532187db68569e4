package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
)

const expTime = 24 * time.Hour

// ContextKey is the gin context key of the authenticated *TelegramUserData.
const ContextKey = "telegram_user"

var ErrNoUser = errors.New("init data carries no user")

type TelegramAuth struct {
	botToken       string
	skipValidation bool
}

// NewTelegramAuth validates mini-app init data signed with botToken.
func NewTelegramAuth(botToken string) *TelegramAuth {
	return &TelegramAuth{
		botToken: botToken,
	}
}

// NewInsecureTelegramAuth trusts init data without checking its signature.
// Any caller can then act as any user, moderator included; local
// development only.
func NewInsecureTelegramAuth(botToken string) *TelegramAuth {
	logger.Logger().Warn("telegram init data signatures are not checked")
	return &TelegramAuth{
		botToken:       botToken,
		skipValidation: true,
	}
}

func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Info("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		if !strings.HasPrefix(authHeader, "Telegram ") {
			log.Info("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		initData := strings.TrimPrefix(authHeader, "Telegram ")
		if !t.skipValidation {
			if err := initdata.Validate(initData, t.botToken, expTime); err != nil {
				log.Info("invalid telegram init data", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram auth data"})
				return
			}
		}

		telegramUserData, err := ExtractTelegramData(initData)
		if err != nil {
			log.Error("failed to extract telegram data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram data"})
			return
		}

		c.Set(ContextKey, telegramUserData)
		c.Next()
	}
}

type TelegramUserData struct {
	ID        int64
	Username  string
	FirstName string
	AuthDate  time.Time
}

// DisplayName is the name the bot greets the user with.
func (d *TelegramUserData) DisplayName() string {
	if d.FirstName != "" {
		return d.FirstName
	}
	return d.Username
}

// UserFromContext returns the user stored by TelegramAuthMiddleware.
func UserFromContext(c *gin.Context) (*TelegramUserData, bool) {
	v, exists := c.Get(ContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*TelegramUserData)
	return user, ok
}

func ExtractTelegramData(initData string) (*TelegramUserData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, errors.Wrap(err, "parse init data")
	}

	authDateUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse auth_date")
	}

	authDate := time.Unix(authDateUnix, 0)

	var userData struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	}

	if err := json.Unmarshal([]byte(values.Get("user")), &userData); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	if userData.ID == 0 {
		return nil, ErrNoUser
	}

	return &TelegramUserData{
		ID:        userData.ID,
		Username:  userData.Username,
		FirstName: userData.FirstName,
		AuthDate:  authDate,
	}, nil
}
