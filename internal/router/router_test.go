package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"wallstreetvotes/internal/config"
	"wallstreetvotes/internal/models"
	"wallstreetvotes/internal/testutil"
	"wallstreetvotes/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		SessionKey:   "test-session-secret",
		JWTSecret:    "test-jwt-secret",
		JWTTTL:       time.Hour,
		CacheTTL:     time.Minute,
		TemplatesDir: "../../web/templates",
		Admins:       []string{"admin"},
	}
}

func setupServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	cache, err := utils.NewMemoryCache(16)
	require.NoError(t, err)

	r, err := New(testConfig(), conn, cache)
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, conn
}

// newClient keeps cookies and does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func login(t *testing.T, client *http.Client, srv *httptest.Server, username string) {
	t.Helper()
	resp, err := client.PostForm(srv.URL+"/login", url.Values{"username": {username}, "password": {"password123"}})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/index", resp.Header.Get("Location"))
}

func promote(t *testing.T, conn *gorm.DB, id uint) {
	t.Helper()
	require.NoError(t, conn.Model(&models.User{}).Where("id = ?", id).Update("is_leader", true).Error)
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := setupServer(t)
	client := newClient(t)

	resp, err := client.PostForm(srv.URL+"/register", url.Values{
		"username": {"alice"}, "password": {"secret1"}, "confirm_pw": {"secret2"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Passwords do not match")

	resp, err = client.PostForm(srv.URL+"/register", url.Values{
		"username": {"alice"}, "password": {"secret1"}, "confirm_pw": {"secret1"},
	})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Registered successfully")

	resp, err = client.PostForm(srv.URL+"/register", url.Values{
		"username": {"alice"}, "password": {"another"}, "confirm_pw": {"another"},
	})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "Username already exists")

	resp, err = client.PostForm(srv.URL+"/login", url.Values{"username": {"alice"}, "password": {"wrong-pass"}})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = client.PostForm(srv.URL+"/login", url.Values{"username": {"alice"}, "password": {"secret1"}})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/index")
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "alice")

	resp, err = client.Get(srv.URL + "/logout")
	require.NoError(t, err)
	readBody(t, resp)

	resp, err = client.Get(srv.URL + "/index")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRootRedirectsToIndex(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := newClient(t).Get(srv.URL + "/")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/index", resp.Header.Get("Location"))
}

func TestAddAndVoteStock(t *testing.T) {
	srv, conn := setupServer(t)
	leader := testutil.CreateTestUser(t, conn, "leader")
	testutil.CreateTestUser(t, conn, "bob")
	promote(t, conn, leader.ID)

	leaderClient := newClient(t)
	login(t, leaderClient, srv, "leader")

	resp, err := leaderClient.PostForm(srv.URL+"/stocks", url.Values{
		"ticker": {"aapl"}, "direction": {"1"}, "description": {"**iPhone** cycle"},
	})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = leaderClient.PostForm(srv.URL+"/stocks", url.Values{"ticker": {"AAPL"}, "direction": {"long"}})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "already been added")

	bobClient := newClient(t)
	login(t, bobClient, srv, "bob")

	resp, err = bobClient.Get(srv.URL + "/vote_stock?ticker=AAPL&direction=1&up=0")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = bobClient.Get(srv.URL + "/vote_stock?ticker=AAPL&direction=1&up=1")
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "already voted down")

	var stock models.Stock
	require.NoError(t, conn.Where("ticker_direction = ?", "AAPL:1").Take(&stock).Error)
	assert.Equal(t, 0, stock.Votes)
	assert.Equal(t, 2, stock.TotalVotes)

	resp, err = bobClient.Get(srv.URL + "/index")
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "AAPL")
	assert.Contains(t, body, "<strong>iPhone</strong>")
}

func TestVoteStockErrors(t *testing.T) {
	srv, conn := setupServer(t)
	testutil.CreateTestUser(t, conn, "bob")
	client := newClient(t)
	login(t, client, srv, "bob")

	resp, err := client.Get(srv.URL + "/vote_stock?ticker=MSFT&direction=0&up=1")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "MSFT:0")
	assert.Contains(t, body, `href="/index"`)

	resp, err = client.Get(srv.URL + "/vote_stock?ticker=MSFT&direction=sideways")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/vote_stock?ticker=bad-ticker!&direction=1")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var n int64
	conn.Model(&models.StockVote{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestAddStockRequiresLeader(t *testing.T) {
	srv, conn := setupServer(t)
	testutil.CreateTestUser(t, conn, "bob")
	client := newClient(t)
	login(t, client, srv, "bob")

	resp, err := client.PostForm(srv.URL+"/stocks", url.Values{"ticker": {"TSLA"}, "direction": {"0"}})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var n int64
	conn.Model(&models.Stock{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestToggleLeader(t *testing.T) {
	srv, conn := setupServer(t)
	testutil.CreateTestUser(t, conn, "admin")
	bob := testutil.CreateTestUser(t, conn, "bob")

	bobClient := newClient(t)
	login(t, bobClient, srv, "bob")
	resp, err := bobClient.Post(srv.URL+"/leaders/1/toggle", "", nil)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminClient := newClient(t)
	login(t, adminClient, srv, "admin")
	resp, err = adminClient.Post(srv.URL+"/leaders/"+utoa(bob.ID)+"/toggle", "", nil)
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/index?ok=Promoted", resp.Header.Get("Location"))

	var user models.User
	require.NoError(t, conn.Take(&user, bob.ID).Error)
	assert.True(t, user.IsLeader)

	resp, err = adminClient.Post(srv.URL+"/leaders/9999/toggle", "", nil)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVoteLeader(t *testing.T) {
	srv, conn := setupServer(t)
	alice := testutil.CreateTestUser(t, conn, "alice")
	bob := testutil.CreateTestUser(t, conn, "bob")

	client := newClient(t)
	login(t, client, srv, "bob")

	resp, err := client.Get(srv.URL + "/vote_leader?candidate=" + utoa(bob.ID) + "&up=1")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/vote_leader?candidate=" + utoa(alice.ID) + "&up=1")
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/vote_leader?candidate=" + utoa(alice.ID) + "&up=0")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var user models.User
	require.NoError(t, conn.Take(&user, alice.ID).Error)
	assert.Equal(t, 1, user.LeaderVotes)
	assert.Equal(t, 1, user.TotalLeaderVotes)
}

func apiToken(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"username": username, "password": "password123"})
	resp, err := http.Post(srv.URL+"/api/v1/token", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func apiDo(t *testing.T, method, target, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAPI(t *testing.T) {
	srv, conn := setupServer(t)
	leader := testutil.CreateTestUser(t, conn, "leader")
	bob := testutil.CreateTestUser(t, conn, "bob")
	promote(t, conn, leader.ID)

	leaderClient := newClient(t)
	login(t, leaderClient, srv, "leader")
	resp, err := leaderClient.PostForm(srv.URL+"/stocks", url.Values{"ticker": {"NVDA"}, "direction": {"short"}})
	require.NoError(t, err)
	readBody(t, resp)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = apiDo(t, http.MethodGet, srv.URL+"/api/v1/stocks", "", "")
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := apiToken(t, srv, "bob")

	resp = apiDo(t, http.MethodPost, srv.URL+"/api/v1/stocks/vote", token, `{"ticker":"nvda","direction":"0","up":true}`)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = apiDo(t, http.MethodPost, srv.URL+"/api/v1/stocks/vote", token, `{"ticker":"NVDA","direction":"0","up":false}`)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "already voted")

	resp = apiDo(t, http.MethodGet, srv.URL+"/api/v1/stocks", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Stocks []struct {
			Key        string `json:"key"`
			Votes      int    `json:"votes"`
			TotalVotes int    `json:"total_votes"`
		} `json:"stocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &listing))
	require.Len(t, listing.Stocks, 1)
	assert.Equal(t, "NVDA:0", listing.Stocks[0].Key)
	assert.Equal(t, 2, listing.Stocks[0].Votes)
	assert.Equal(t, 2, listing.Stocks[0].TotalVotes)

	resp = apiDo(t, http.MethodPost, srv.URL+"/api/v1/leaders/"+utoa(bob.ID)+"/vote", token, "")
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = apiDo(t, http.MethodPost, srv.URL+"/api/v1/leaders/"+utoa(leader.ID)+"/vote", token, `{"up":false}`)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, conn.Take(&user, leader.ID).Error)
	assert.Equal(t, -1, user.LeaderVotes)
}

func TestAPITokenRejectsBadCredentials(t *testing.T) {
	srv, conn := setupServer(t)
	testutil.CreateTestUser(t, conn, "bob")

	resp := apiDo(t, http.MethodPost, srv.URL+"/api/v1/token", "", `{"username":"bob","password":"nope"}`)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = apiDo(t, http.MethodGet, srv.URL+"/api/v1/stocks", "not-a-token", "")
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIndexShowsLegacyStockWithoutDirection(t *testing.T) {
	srv, conn := setupServer(t)
	bob := testutil.CreateTestUser(t, conn, "bob")
	require.NoError(t, conn.Create(&models.Stock{TickerDirection: "TSLA", PostedBy: bob.ID}).Error)

	client := newClient(t)
	login(t, client, srv, "bob")

	resp, err := client.Get(srv.URL + "/index")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "TSLA")
	assert.Contains(t, body, "unmigrated")
	assert.NotContains(t, body, `class="short"`)
	assert.NotContains(t, body, "vote_stock?ticker=TSLA")
}
