package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	agencydomain "ghl-backend/internal/agency/domain"
	contactdomain "ghl-backend/internal/contact/domain"
	installdomain "ghl-backend/internal/installation/domain"
	locationdomain "ghl-backend/internal/location/domain"
	tokendomain "ghl-backend/internal/token/domain"
	userdomain "ghl-backend/internal/user/domain"
	"ghl-backend/internal/webhook/domain"
	"ghl-backend/pkg/apperrors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	installs   []installdomain.InstallRequest
	uninstalls []installdomain.UninstallPayload
	companies  []agencydomain.Company
	users      []userdomain.User
	created    []locationdomain.Location
	patches    []locationdomain.Patch
	mints      []string
	contacts   []contactdomain.Contact
	deleted    [][2]string

	installed    map[string]bool
	companyToken *tokendomain.Token
	mintErr      error
	userErr      error
}

func (r *recorder) ProcessInstallation(_ context.Context, req installdomain.InstallRequest) (*installdomain.Result, error) {
	r.installs = append(r.installs, req)
	return &installdomain.Result{RunID: "run-1", CompanyID: req.Reinstall.CompanyID}, nil
}

func (r *recorder) ProcessUninstallation(_ context.Context, p installdomain.UninstallPayload) (*installdomain.UninstallResult, error) {
	r.uninstalls = append(r.uninstalls, p)
	if p.LocationID != "" {
		return &installdomain.UninstallResult{Scope: installdomain.ScopeLocation, EntityID: p.LocationID}, nil
	}
	return &installdomain.UninstallResult{Scope: installdomain.ScopeCompany, EntityID: p.CompanyID}, nil
}

func (r *recorder) Upsert(_ context.Context, c agencydomain.Company) error {
	r.companies = append(r.companies, c)
	return nil
}

type userRecorder struct{ *recorder }

func (u userRecorder) Upsert(_ context.Context, usr userdomain.User) error {
	u.users = append(u.users, usr)
	return u.userErr
}

type locationRecorder struct{ *recorder }

func (l locationRecorder) Create(_ context.Context, loc locationdomain.Location) (*locationdomain.Location, error) {
	l.created = append(l.created, loc)
	stored := loc
	stored.IsInstalled = l.installed[loc.ID]
	return &stored, nil
}

func (l locationRecorder) Update(_ context.Context, p locationdomain.Patch) error {
	l.patches = append(l.patches, p)
	return nil
}

func (l locationRecorder) MintLocationToken(_ context.Context, companyID, bearer, locationID string) locationdomain.MintResult {
	l.mints = append(l.mints, companyID+"/"+locationID+"/"+bearer)
	if l.mintErr != nil {
		return locationdomain.MintResult{LocationID: locationID, Err: l.mintErr}
	}
	return locationdomain.MintResult{LocationID: locationID, Token: &tokendomain.Token{LocationID: locationID}}
}

type contactRecorder struct{ *recorder }

func (c contactRecorder) Upsert(_ context.Context, k contactdomain.Contact) (string, error) {
	c.contacts = append(c.contacts, k)
	if k.ID == "" {
		return "generated", nil
	}
	return k.ID, nil
}

func (c contactRecorder) Delete(_ context.Context, id, locationID string) error {
	c.deleted = append(c.deleted, [2]string{id, locationID})
	return nil
}

type tokenRecorder struct{ *recorder }

func (t tokenRecorder) Get(_ context.Context, companyID string, _ tokendomain.Kind, _ string) (*tokendomain.Token, error) {
	if t.companyToken == nil || t.companyToken.CompanyID != companyID {
		return nil, fmt.Errorf("token: %w", apperrors.ErrNotFound)
	}
	return t.companyToken, nil
}

func newDispatcher() (Dispatcher, *recorder) {
	r := &recorder{installed: map[string]bool{}}
	d := NewDispatcher(r, r, userRecorder{r}, locationRecorder{r}, contactRecorder{r}, tokenRecorder{r}, zerolog.Nop())
	return d, r
}

func TestDispatch_LocationInstallRunsReinstall(t *testing.T) {
	d, r := newDispatcher()

	out, err := d.Dispatch(context.Background(), domain.Event{Type: "INSTALL", AppID: "A1", CompanyID: "C1", LocationID: "L1"})
	require.NoError(t, err)
	assert.True(t, out.Handled)
	assert.Equal(t, "run-1", out.Detail)

	require.Len(t, r.installs, 1)
	assert.Equal(t, &installdomain.InstallData{LocationID: "L1", CompanyID: "C1", AppID: "A1"}, r.installs[0].Reinstall)
	assert.Empty(t, r.installs[0].Code)
	assert.Empty(t, r.companies)
}

func TestDispatch_CompanyInstallRecordsCompany(t *testing.T) {
	d, r := newDispatcher()

	_, err := d.Dispatch(context.Background(), domain.Event{
		Type:        "INSTALL",
		AppID:       "A1",
		CompanyID:   "C1",
		CompanyName: "Agency",
		PlanID:      "P1",
		Trial:       &domain.Trial{OnTrial: true, TrialDuration: 14},
	})
	require.NoError(t, err)

	assert.Empty(t, r.installs)
	require.Len(t, r.companies, 1)
	c := r.companies[0]
	assert.Equal(t, agencydomain.InstallTypeWebhook, c.InstallType)
	assert.Equal(t, "Agency", c.CompanyName)
	require.NotNil(t, c.Trial)
	assert.True(t, c.Trial.OnTrial)
}

func TestDispatch_InstallWithoutCompany(t *testing.T) {
	d, _ := newDispatcher()
	_, err := d.Dispatch(context.Background(), domain.Event{Type: "INSTALL", LocationID: "L1"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPayload))
}

func TestDispatch_Uninstall(t *testing.T) {
	d, r := newDispatcher()

	out, err := d.Dispatch(context.Background(), domain.Event{Type: "UNINSTALL", CompanyID: "C1", LocationID: "L1"})
	require.NoError(t, err)
	assert.Equal(t, "location:L1", out.Detail)
	require.Len(t, r.uninstalls, 1)
	assert.Equal(t, installdomain.UninstallPayload{Type: "UNINSTALL", CompanyID: "C1", LocationID: "L1"}, r.uninstalls[0])
}

func TestDispatch_UserEvents(t *testing.T) {
	d, r := newDispatcher()
	ctx := context.Background()

	for _, typ := range []string{"UserCreate", "UserUpdate"} {
		_, err := d.Dispatch(ctx, domain.Event{
			Type:       typ,
			ID:         "U1",
			LocationID: "L1",
			FirstName:  "Ann",
			LastName:   "Lee",
			Roles:      &domain.Roles{Type: "account", Role: "admin"},
			Locations:  []string{"L1", "L2"},
		})
		require.NoError(t, err)
	}

	require.Len(t, r.users, 2)
	u := r.users[0]
	assert.Equal(t, "Ann Lee", u.Name)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, []string{"L1", "L2"}, u.LocationIDs)
}

func TestDispatch_UserFailurePropagates(t *testing.T) {
	d, r := newDispatcher()
	r.userErr = fmt.Errorf("write: %w", apperrors.ErrInvalidArgument)

	_, err := d.Dispatch(context.Background(), domain.Event{Type: "UserCreate"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestDispatch_LocationCreateMintsTokenWhenConnected(t *testing.T) {
	d, r := newDispatcher()
	r.installed["L9"] = true
	r.companyToken = &tokendomain.Token{CompanyID: "C1", AccessToken: "AT1"}

	out, err := d.Dispatch(context.Background(), domain.Event{Type: "LocationCreate", ID: "L9", CompanyID: "C1", Name: "Shop"})
	require.NoError(t, err)
	assert.Equal(t, "token minted", out.Detail)
	require.Len(t, r.created, 1)
	assert.Equal(t, "Shop", r.created[0].Name)
	assert.Equal(t, []string{"C1/L9/AT1"}, r.mints)
}

func TestDispatch_LocationCreateWithoutCompanyToken(t *testing.T) {
	d, r := newDispatcher()
	r.installed["L9"] = true

	out, err := d.Dispatch(context.Background(), domain.Event{Type: "LocationCreate", ID: "L9", CompanyID: "C1"})
	require.NoError(t, err)
	assert.Equal(t, "company not connected", out.Detail)
	assert.Len(t, r.created, 1)
	assert.Empty(t, r.mints)
}

func TestDispatch_LocationCreateSkipsMintWhenNotInstalled(t *testing.T) {
	d, r := newDispatcher()
	r.companyToken = &tokendomain.Token{CompanyID: "C1", AccessToken: "AT1"}

	out, err := d.Dispatch(context.Background(), domain.Event{Type: "LocationCreate", ID: "L9", CompanyID: "C1"})
	require.NoError(t, err)
	assert.True(t, out.Handled)
	assert.Equal(t, "location not installed", out.Detail)
	assert.Len(t, r.created, 1)
	assert.Empty(t, r.mints)
}

func TestDispatch_LocationCreateMintFailureIsTolerated(t *testing.T) {
	d, r := newDispatcher()
	r.installed["L9"] = true
	r.companyToken = &tokendomain.Token{CompanyID: "C1", AccessToken: "AT1"}
	r.mintErr = apperrors.ErrUpstream

	out, err := d.Dispatch(context.Background(), domain.Event{Type: "LocationCreate", ID: "L9", CompanyID: "C1"})
	require.NoError(t, err)
	assert.Equal(t, "token not minted", out.Detail)
}

func TestDispatch_LocationUpdateOnlyPatchesSentFields(t *testing.T) {
	d, r := newDispatcher()

	_, err := d.Dispatch(context.Background(), domain.Event{Type: "LocationUpdate", ID: "L1", Name: "Renamed"})
	require.NoError(t, err)

	require.Len(t, r.patches, 1)
	p := r.patches[0]
	require.NotNil(t, p.Name)
	assert.Equal(t, "Renamed", *p.Name)
	assert.Nil(t, p.CompanyID)
	assert.Nil(t, p.Address)
	assert.Nil(t, p.IsInstalled)
}

func TestDispatch_ContactEvents(t *testing.T) {
	d, r := newDispatcher()
	ctx := context.Background()

	out, err := d.Dispatch(ctx, domain.Event{Type: "ContactCreate", LocationID: "L1", Email: "a@b.c", Tags: []string{"vip"}})
	require.NoError(t, err)
	assert.Equal(t, "generated", out.Detail)

	_, err = d.Dispatch(ctx, domain.Event{Type: "ContactUpdate", ID: "K1", LocationID: "L1"})
	require.NoError(t, err)

	_, err = d.Dispatch(ctx, domain.Event{Type: "ContactDelete", ID: "K1", LocationID: "L1"})
	require.NoError(t, err)

	require.Len(t, r.contacts, 2)
	assert.Equal(t, []string{"vip"}, r.contacts[0].Tags)
	assert.Equal(t, [][2]string{{"K1", "L1"}}, r.deleted)
}

func TestDispatch_IgnoredEvents(t *testing.T) {
	d, r := newDispatcher()
	ctx := context.Background()

	for _, typ := range []string{"InboundMessage", "OutboundMessage", "NoteCreate"} {
		out, err := d.Dispatch(ctx, domain.Event{Type: typ, MessageType: "SMS"})
		require.NoError(t, err, typ)
		assert.False(t, out.Handled, typ)
	}
	assert.Empty(t, r.installs)
	assert.Empty(t, r.contacts)
}

func TestDispatch_MissingType(t *testing.T) {
	d, _ := newDispatcher()
	_, err := d.Dispatch(context.Background(), domain.Event{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPayload))
}

func TestParse(t *testing.T) {
	e, err := domain.Parse([]byte(`{"type":"LocationUpdate","id":"L1","address":"","trial":{"onTrial":true}}`))
	require.NoError(t, err)
	assert.Equal(t, "LocationUpdate", e.Type)
	require.NotNil(t, e.Address)
	assert.Empty(t, *e.Address)
	assert.True(t, e.Trial.OnTrial)
}
