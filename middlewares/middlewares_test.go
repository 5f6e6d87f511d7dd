package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicwatch-be/models"
	"civicwatch-be/store"
	"civicwatch-be/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func echoUser(c *gin.Context) {
	id, _ := c.Get(ContextUserID)
	actor, _ := Actor(c)
	c.JSON(http.StatusOK, gin.H{"user_id": id, "role": actor.Role})
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/", AuthMiddleware(secret), echoUser)

	w := do(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := utils.GenerateToken("other-secret", "abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, other).Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "abc",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	expiredToken, err := expired.SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, expiredToken).Code)

	noClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "abc"}).SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, noClaim).Code)

	good, err := utils.GenerateToken(secret, "abc")
	require.NoError(t, err)
	w = do(r, good)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"abc"`)
}

func TestAuthMiddlewareWithoutSecret(t *testing.T) {
	r := gin.New()
	r.GET("/", AuthMiddleware(""), echoUser)
	assert.Equal(t, http.StatusInternalServerError, do(r, "x").Code)
}

func TestOptionalAuthAndLoadActor(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	active := models.User{Email: "mod@city.test", Role: models.RoleModerator, IsStaff: true, IsActive: true}
	inactive := models.User{Email: "old@city.test", Role: models.RoleCitizen}
	require.NoError(t, st.CreateUser(ctx, &active))
	require.NoError(t, st.CreateUser(ctx, &inactive))

	r := gin.New()
	r.GET("/", OptionalAuth(secret), LoadActor(st), echoUser)

	w := do(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":null`)

	token, _ := utils.GenerateToken(secret, active.ID.Hex())
	w = do(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"moderator"`)

	token, _ = utils.GenerateToken(secret, inactive.ID.Hex())
	assert.Equal(t, http.StatusUnauthorized, do(r, token).Code)

	token, _ = utils.GenerateToken(secret, "not-hex")
	assert.Equal(t, http.StatusUnauthorized, do(r, token).Code)
}

func TestIssueRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := gin.New()
	r.GET("/", AuthMiddleware(secret), IssueRateLimiter(client, "issue_limit", 2), echoUser)
	token, _ := utils.GenerateToken(secret, "u1")

	assert.Equal(t, http.StatusOK, do(r, token).Code)
	assert.Equal(t, http.StatusOK, do(r, token).Code)
	w := do(r, token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")

	assert.Equal(t, rateLimitWindow, mr.TTL("issue_limit:u1"))

	other, _ := utils.GenerateToken(secret, "u2")
	assert.Equal(t, http.StatusOK, do(r, other).Code)

	mr.FastForward(rateLimitWindow + time.Second)
	assert.Equal(t, http.StatusOK, do(r, token).Code)
}
