package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"coinledger/pkg/requestcontext"
)

type MetadataSuite struct {
	suite.Suite
}

func TestMetadataSuite(t *testing.T) {
	suite.Run(t, new(MetadataSuite))
}

func (s *MetadataSuite) TestUserAgentParsing() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", ParseUserAgent(""))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Contains(result, "Chrome")
		s.Contains(result, " on ")
		s.NotContains(result, "  ")
	})

	s.Run("safari on iphone includes platform", func() {
		result := ParseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		s.Contains(result, "iPhone")
	})

	s.Run("firefox on linux includes browser and OS", func() {
		result := ParseUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.Contains(result, "Firefox")
		s.Contains(result, "Linux")
	})
}

func (s *MetadataSuite) TestClientIPFromRequest() {
	s.Run("first forwarded address wins", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		s.Equal("203.0.113.7", ClientIPFromRequest(r))
	})

	s.Run("x-real-ip is used without forwarded header", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Real-IP", "198.51.100.4")
		s.Equal("198.51.100.4", ClientIPFromRequest(r))
	})

	s.Run("remote addr port is stripped", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:5555"
		s.Equal("192.0.2.1", ClientIPFromRequest(r))
	})

	s.Run("ipv6 remote addr brackets are stripped", func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "[::1]:5555"
		s.Equal("::1", ClientIPFromRequest(r))
	})
}

func (s *MetadataSuite) TestMiddlewareInjectsContext() {
	var gotIP, gotDevice string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotDevice = requestcontext.ActorDevice(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.4")
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	s.Equal("198.51.100.4", gotIP)
	s.Contains(gotDevice, "Firefox")
}
