package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/services"
	"haushaltsbuch/internal/storage/memory"
)

const adminEmail = "admin@example.com"

type testEnv struct {
	t     *testing.T
	srv   *httptest.Server
	app   *Server
	store *memory.Store
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	logger := log.New(log.Config{Output: io.Discard})
	ledger := services.NewLedgerService(store, nil, services.LedgerOptions{Categories: core.DefaultCategories}, logger)
	users := services.NewUserService(store, services.UserOptions{AdminEmail: adminEmail, BcryptCost: 4}, logger)

	if opts.SessionSecret == nil {
		opts.SessionSecret = []byte("0123456789abcdef0123456789abcdef")
	}
	app, err := NewServer(":0", Deps{Ledger: ledger, Users: users, Store: store, Logger: logger}, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = app.Shutdown(context.Background())
	})
	return &testEnv{t: t, srv: srv, app: app, store: store}
}

// client is one browser: it keeps cookies and does not follow redirects.
type client struct {
	env *testEnv
	hc  *http.Client
}

func (e *testEnv) newClient() *client {
	jar, _ := cookiejar.New(nil)
	return &client{env: e, hc: &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type response struct {
	code   int
	header http.Header
	body   string
}

func (c *client) do(req *http.Request) response {
	c.env.t.Helper()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.env.t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return response{code: resp.StatusCode, header: resp.Header, body: string(body)}
}

func (c *client) get(path string) response {
	c.env.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, c.env.srv.URL+path, nil)
	return c.do(req)
}

func (c *client) post(path string, form url.Values) response {
	c.env.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, c.env.srv.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (e *testEnv) register(email string) *client {
	e.t.Helper()
	c := e.newClient()
	res := c.post("/register", url.Values{"email": {email}, "password": {"geheim123"}})
	if res.code != http.StatusSeeOther {
		e.t.Fatalf("register %s: status %d body %s", email, res.code, res.body)
	}
	return c
}

func (e *testEnv) userID(email string) int64 {
	e.t.Helper()
	u, err := e.store.UserByEmail(context.Background(), email)
	if err != nil {
		e.t.Fatalf("UserByEmail(%s): %v", email, err)
	}
	return u.ID
}

func (e *testEnv) entries(owner int64) []core.Entry {
	e.t.Helper()
	got, err := e.store.Fetch(context.Background(), owner, core.Filter{})
	if err != nil {
		e.t.Fatalf("Fetch: %v", err)
	}
	return got
}

func entryForm(date, category, amount, typ, note string) url.Values {
	return url.Values{"date": {date}, "category": {category}, "amount": {amount}, "type": {typ}, "note": {note}}
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.newClient()

	for _, path := range []string{"/healthz", "/readyz"} {
		if res := c.get(path); res.code != http.StatusOK {
			t.Fatalf("%s status=%d", path, res.code)
		}
	}
	res := c.get("/metrics")
	if res.code != http.StatusOK || !strings.Contains(res.body, "http_requests_total") {
		t.Fatalf("metrics status=%d body=%s", res.code, res.body)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, Options{})
	res := env.newClient().get("/login")
	if res.code != http.StatusOK {
		t.Fatalf("login form status=%d", res.code)
	}
	if res.header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if res.header.Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}
}

func TestAnonymousIsRedirectedToLogin(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.newClient()
	for _, path := range []string{"/", "/export.csv", "/admin/users", "/entries/clear"} {
		res := c.get(path)
		if res.code != http.StatusSeeOther || res.header.Get("Location") != "/login" {
			t.Fatalf("%s: status=%d location=%q", path, res.code, res.header.Get("Location"))
		}
	}
}

func TestForgedSessionCookie(t *testing.T) {
	env := newTestEnv(t, Options{})
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-token"})
	res := env.newClient().do(req)
	if res.code != http.StatusSeeOther {
		t.Fatalf("status=%d, want redirect", res.code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("Anna@Example.com")

	res := c.get("/")
	if res.code != http.StatusOK {
		t.Fatalf("index status=%d", res.code)
	}
	if !strings.Contains(res.body, "Neue Buchung") || !strings.Contains(res.body, "Willkommen") {
		t.Fatalf("index body missing heading or flash: %s", res.body)
	}
	if strings.Contains(c.get("/").body, "Willkommen") {
		t.Fatal("flash must be shown only once")
	}

	dup := env.newClient().post("/register", url.Values{"email": {"anna@example.com"}, "password": {"geheim123"}})
	if dup.code != http.StatusUnprocessableEntity || !strings.Contains(dup.body, "bereits registriert") {
		t.Fatalf("duplicate register: status=%d", dup.code)
	}
	weak := env.newClient().post("/register", url.Values{"email": {"bob@example.com"}, "password": {"kurz"}})
	if weak.code != http.StatusUnprocessableEntity {
		t.Fatalf("weak password: status=%d", weak.code)
	}
	long := env.newClient().post("/register", url.Values{"email": {"bob@example.com"}, "password": {strings.Repeat("a", 80)}})
	if long.code != http.StatusUnprocessableEntity || !strings.Contains(long.body, "höchstens 72 Bytes") {
		t.Fatalf("long password: status=%d", long.code)
	}

	other := env.newClient()
	bad := other.post("/login", url.Values{"email": {"anna@example.com"}, "password": {"falsch"}})
	if bad.code != http.StatusUnauthorized || !strings.Contains(bad.body, "falsch") {
		t.Fatalf("wrong password: status=%d", bad.code)
	}
	good := other.post("/login", url.Values{"email": {"anna@example.com"}, "password": {"geheim123"}})
	if good.code != http.StatusSeeOther || good.header.Get("Location") != "/" {
		t.Fatalf("login: status=%d location=%q", good.code, good.header.Get("Location"))
	}
	if res := other.get("/"); res.code != http.StatusOK {
		t.Fatalf("index after login status=%d", res.code)
	}

	if res := other.post("/logout", nil); res.code != http.StatusSeeOther {
		t.Fatalf("logout status=%d", res.code)
	}
	if res := other.get("/"); res.code != http.StatusSeeOther {
		t.Fatalf("index after logout status=%d", res.code)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{LoginRatePerMinute: 2})
	c := env.newClient()
	form := url.Values{"email": {"x@example.com"}, "password": {"whatever1"}}

	for i := 0; i < 2; i++ {
		if res := c.post("/login", form); res.code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d", i+1, res.code)
		}
	}
	res := c.post("/login", form)
	if res.code != http.StatusTooManyRequests || res.header.Get("Retry-After") == "" {
		t.Fatalf("third attempt status=%d", res.code)
	}
	if res := c.get("/login"); res.code != http.StatusOK {
		t.Fatalf("GET /login must stay available, got %d", res.code)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("anna@example.com")

	res := c.post("/entries", entryForm("2024-05-01", "", "abc", "expense", "Wocheneinkauf"))
	if res.code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want 422", res.code)
	}
	for _, want := range []string{"Bitte eine Kategorie wählen.", "gültigen Betrag", `value="Wocheneinkauf"`, `value="abc"`} {
		if !strings.Contains(res.body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if n := len(env.entries(env.userID("anna@example.com"))); n != 0 {
		t.Fatalf("%d entries stored after rejected form", n)
	}
}

func TestCreateListAndFilter(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("anna@example.com")

	for _, f := range []url.Values{
		entryForm("2024-05-01", "Gehalt", "2.500,00", "income", "Monatslohn"),
		entryForm("2024-05-02", "Lebensmittel", "45,50", "expense", "Wocheneinkauf"),
	} {
		if res := c.post("/entries", f); res.code != http.StatusSeeOther {
			t.Fatalf("create status=%d body=%s", res.code, res.body)
		}
	}

	owner := env.userID("anna@example.com")
	got := env.entries(owner)
	if len(got) != 2 || got[0].Amount.Cents != -4550 || got[1].Amount.Cents != 250000 {
		t.Fatalf("stored entries = %+v", got)
	}

	all := c.get("/")
	if cc := all.header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("ledger page Cache-Control = %q, want no-store", cc)
	}
	for _, want := range []string{"Monatslohn", "Wocheneinkauf", "2.500,00 €", "-45,50 €", "2.454,50 €"} {
		if !strings.Contains(all.body, want) {
			t.Errorf("listing missing %q", want)
		}
	}

	expenses := c.get("/?type=expense")
	if strings.Contains(expenses.body, "Monatslohn") || !strings.Contains(expenses.body, "Wocheneinkauf") {
		t.Fatal("type filter not applied")
	}
	if !strings.Contains(expenses.body, "/export.csv?type=expense") {
		t.Fatal("export link must carry the active filter")
	}

	none := c.get("/?q=monatslohn")
	if !strings.Contains(none.body, "Keine Buchungen gefunden.") {
		t.Fatal("note search must be case-sensitive")
	}
}

func TestEditUpdateDelete(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("anna@example.com")
	c.post("/entries", entryForm("2024-05-02", "Lebensmittel", "45,50", "expense", "Markt"))
	owner := env.userID("anna@example.com")
	id := env.entries(owner)[0].ID
	base := "/entries/" + itoa(id)

	edit := c.get(base + "/edit")
	if edit.code != http.StatusOK || !strings.Contains(edit.body, `value="45,50"`) {
		t.Fatalf("edit form status=%d", edit.code)
	}

	if res := c.post(base, entryForm("2024-05-03", "Lebensmittel", "", "expense", "")); res.code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid update status=%d", res.code)
	}
	if res := c.post(base, entryForm("2024-05-03", "Wohnen", "800", "expense", "Miete Mai")); res.code != http.StatusSeeOther {
		t.Fatalf("update status=%d", res.code)
	}
	e := env.entries(owner)[0]
	if e.Category != "Wohnen" || e.Amount.Cents != -80000 || e.Note != "Miete Mai" {
		t.Fatalf("entry after update = %+v", e)
	}

	if res := c.post(base+"/delete", nil); res.code != http.StatusSeeOther {
		t.Fatalf("delete status=%d", res.code)
	}
	if n := len(env.entries(owner)); n != 0 {
		t.Fatalf("%d entries left after delete", n)
	}
	if res := c.post(base+"/delete", nil); res.code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", res.code)
	}
	if res := c.get("/entries/abc/edit"); res.code != http.StatusNotFound {
		t.Fatalf("non-numeric id status=%d", res.code)
	}
}

func TestOwnerIsolation(t *testing.T) {
	env := newTestEnv(t, Options{})
	anna := env.register("anna@example.com")
	bob := env.register("bob@example.com")

	anna.post("/entries", entryForm("2024-05-02", "Lebensmittel", "12,00", "expense", "Annas Einkauf"))
	id := env.entries(env.userID("anna@example.com"))[0].ID
	base := "/entries/" + itoa(id)

	if res := bob.get("/"); strings.Contains(res.body, "Annas Einkauf") {
		t.Fatal("foreign entry visible in listing")
	}
	if res := bob.get(base + "/edit"); res.code != http.StatusNotFound {
		t.Fatalf("foreign edit status=%d", res.code)
	}
	if res := bob.post(base, entryForm("2024-05-02", "X", "1", "income", "")); res.code != http.StatusNotFound {
		t.Fatalf("foreign update status=%d", res.code)
	}
	if res := bob.post(base+"/delete", nil); res.code != http.StatusNotFound {
		t.Fatalf("foreign delete status=%d", res.code)
	}
	if csv := bob.get("/export.csv"); strings.Contains(csv.body, "Annas Einkauf") {
		t.Fatal("foreign entry exported")
	}
	if got := env.entries(env.userID("anna@example.com")); len(got) != 1 || got[0].Note != "Annas Einkauf" {
		t.Fatalf("anna's entry changed: %+v", got)
	}
}

func TestClearRequiresPassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("anna@example.com")
	c.post("/entries", entryForm("2024-05-01", "Gehalt", "100", "income", ""))
	c.post("/entries", entryForm("2024-05-02", "Lebensmittel", "5", "expense", ""))
	owner := env.userID("anna@example.com")

	if res := c.get("/entries/clear"); res.code != http.StatusOK {
		t.Fatalf("clear form status=%d", res.code)
	}
	if res := c.post("/entries/clear", url.Values{"password": {"falsch"}}); res.code != http.StatusUnprocessableEntity {
		t.Fatalf("wrong password status=%d", res.code)
	}
	if n := len(env.entries(owner)); n != 2 {
		t.Fatalf("entries cleared without password: %d left", n)
	}

	if res := c.post("/entries/clear", url.Values{"password": {"geheim123"}}); res.code != http.StatusSeeOther {
		t.Fatalf("clear status=%d", res.code)
	}
	if n := len(env.entries(owner)); n != 0 {
		t.Fatalf("%d entries left after clear", n)
	}
	if res := c.get("/"); !strings.Contains(res.body, "2 Buchungen gelöscht.") {
		t.Fatal("missing clear confirmation flash")
	}
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("anna@example.com")
	c.post("/entries", entryForm("2024-05-01", "Gehalt", "2.500,00", "income", ""))
	c.post("/entries", entryForm("2024-05-02", "Lebensmittel", "45,50", "expense", "Markt"))

	res := c.get("/export.csv?type=expense")
	if res.code != http.StatusOK {
		t.Fatalf("status=%d", res.code)
	}
	if ct := res.header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("Content-Type=%q", ct)
	}
	if cd := res.header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, ".csv") {
		t.Fatalf("Content-Disposition=%q", cd)
	}
	body := strings.TrimPrefix(res.body, "\ufeff")
	want := "Datum;Kategorie;Betrag;Notiz\n2024-05-02;Lebensmittel;-45,50;Markt\n"
	if body != want {
		t.Fatalf("csv body = %q, want %q", body, want)
	}
}

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t, Options{})
	c := env.register("anna@example.com")
	c.post("/entries", entryForm("2024-05-02", "Lebensmittel", "45,50", "expense", "Markt"))

	res := c.get("/export.xlsx")
	if res.code != http.StatusOK {
		t.Fatalf("status=%d", res.code)
	}
	f, err := excelize.OpenReader(bytes.NewReader([]byte(res.body)))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil || len(rows) != 2 || rows[1][2] != "-45,50" {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.register(adminEmail)
	anna := env.register("anna@example.com")
	annaID := env.userID("anna@example.com")
	adminID := env.userID(adminEmail)

	if res := anna.get("/admin/users"); res.code != http.StatusForbidden {
		t.Fatalf("non-admin status=%d", res.code)
	}

	list := admin.get("/admin/users")
	if list.code != http.StatusOK || !strings.Contains(list.body, "anna@example.com") {
		t.Fatalf("admin list status=%d", list.code)
	}

	if res := admin.post("/admin/users/"+itoa(annaID)+"/role", url.Values{"admin": {"true"}}); res.code != http.StatusSeeOther {
		t.Fatalf("promote status=%d", res.code)
	}
	if res := anna.get("/admin/users"); res.code != http.StatusOK {
		t.Fatalf("promoted user status=%d", res.code)
	}

	if res := admin.post("/admin/users/"+itoa(adminID)+"/role", url.Values{"admin": {"false"}}); res.code != http.StatusSeeOther {
		t.Fatalf("self demote status=%d", res.code)
	}
	if res := admin.get("/admin/users"); !strings.Contains(res.body, "nicht selbst entziehen") {
		t.Fatal("missing self-demotion error flash")
	}
	if u, _ := env.store.UserByID(context.Background(), adminID); !u.IsAdmin {
		t.Fatal("admin demoted themself")
	}

	if res := admin.post("/admin/users/9999/role", url.Values{"admin": {"true"}}); res.code != http.StatusNotFound {
		t.Fatalf("unknown user status=%d", res.code)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, Options{})
	if res := env.newClient().get("/does-not-exist"); res.code != http.StatusNotFound {
		t.Fatalf("status=%d", res.code)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
