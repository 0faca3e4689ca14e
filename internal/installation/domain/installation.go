package domain

// State is a step of the install or uninstall pipeline.
type State string

const (
	StateCodeReceived           State = "CodeReceived"
	StateCompanyTokenObtained   State = "CompanyTokenObtained"
	StateLocationsEnumerated    State = "LocationsEnumerated"
	StateLocationTokensObtained State = "LocationTokensObtained"
	StateUsersSynced            State = "UsersSynced"
	StateContactsSynced         State = "ContactsSynced"
	StateWorkspacesProvisioned  State = "WorkspacesProvisioned"
	StateComplete               State = "Complete"

	StateUninstallRequested     State = "UninstallRequested"
	StateEntityUninstalled      State = "EntityUninstalled"
	StateDependentDataPurged    State = "DependentDataPurged"
	StateRemoteWorkspacesPurged State = "RemoteWorkspacesPurged"
)

// InstallData identifies a webhook-driven reinstall.
type InstallData struct {
	LocationID string `json:"locationId"`
	CompanyID  string `json:"companyId"`
	AppID      string `json:"appId"`
}

// InstallRequest carries exactly one of an authorization code or reinstall data.
type InstallRequest struct {
	Code      string       `json:"code,omitempty"`
	Reinstall *InstallData `json:"installData,omitempty"`
}

// LocationOutcome is how far one location got. Err is set when it stopped early.
type LocationOutcome struct {
	LocationID string `json:"locationId"`
	State      State  `json:"state"`
	// Steps lists every state reached, in order.
	Steps      []State `json:"steps"`
	Users      int     `json:"users"`
	Contacts   int     `json:"contacts"`
	Workspaces int     `json:"workspaces"`
	Err        error   `json:"-"`
	Error      string  `json:"error,omitempty"`
}

// Advance moves the location to s.
func (o *LocationOutcome) Advance(s State) {
	o.State = s
	o.Steps = append(o.Steps, s)
}

// Fail records err as the reason the location stopped.
func (o *LocationOutcome) Fail(err error) {
	o.Err = err
	o.Error = err.Error()
}

type Result struct {
	RunID       string            `json:"runId"`
	CompanyID   string            `json:"companyId"`
	State       State             `json:"state"`
	RetryTaskID string            `json:"retryTaskId,omitempty"`
	Locations   []LocationOutcome `json:"locations"`
}

// Failed counts locations that did not complete.
func (r *Result) Failed() int {
	n := 0
	for _, l := range r.Locations {
		if l.Err != nil {
			n++
		}
	}
	return n
}

const EventUninstall = "UNINSTALL"

// UninstallPayload is the UNINSTALL webhook body.
type UninstallPayload struct {
	Type       string `json:"type"`
	AppID      string `json:"appId"`
	CompanyID  string `json:"companyId"`
	LocationID string `json:"locationId"`
}

type Scope string

const (
	ScopeLocation Scope = "location"
	ScopeCompany  Scope = "company"
)

type UninstallResult struct {
	Scope    Scope  `json:"scope"`
	EntityID string `json:"entityId"`
	State    State  `json:"state"`
	// Steps lists every state reached, in order. RemoteWorkspacesPurged is
	// missing when provider cleanup failed.
	Steps []State `json:"steps"`
	// Locations lists the locations whose data was purged.
	Locations []string `json:"locations"`
	// CleanupErr is the provider cleanup failure, if any. It never fails the uninstall.
	CleanupErr error `json:"-"`
}

func (r *UninstallResult) Advance(s State) {
	r.State = s
	r.Steps = append(r.Steps, s)
}
