package domain

import "time"

// RevisionStatus is a Revision's lifecycle state.
// Flow: pending → (serving | failed); serving → retired once replaced.
// A failed revision never serves; the prior serving revision keeps handling
// traffic.
type RevisionStatus string

const (
	RevisionStatusPending RevisionStatus = "pending"
	RevisionStatusServing RevisionStatus = "serving"
	RevisionStatusFailed  RevisionStatus = "failed"
	RevisionStatusRetired RevisionStatus = "retired"
)

// Revision is one deploy snapshot of a ServiceUnit: the version identifier
// and the exact image reference each container role was pinned to.
type Revision struct {
	ID        string          `json:"id"`
	UnitName  string          `json:"unit_name"`
	Version   string          `json:"version"`
	Images    map[Role]string `json:"images"`
	Status    RevisionStatus  `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PinImages resolves the image reference per role for a new revision.
//
// api and web are pinned to the caller-supplied version. The proxy keeps the
// image of the previous revision — its routing logic changes far less often
// than the backends — and is re-pinned to the stable tag only on the first
// deploy or when the caller explicitly asks for a proxy redeploy.
func PinImages(prev *Revision, repos map[Role]RegistryRepository, version, proxyStableTag string, redeployProxy bool) map[Role]string {
	images := make(map[Role]string, len(Roles))
	for _, role := range Roles {
		repo := repos[role]
		switch role {
		case RoleProxy:
			if prev != nil && !redeployProxy {
				images[role] = prev.Images[RoleProxy]
			} else {
				images[role] = repo.ImageRef(string(role), proxyStableTag)
			}
		default:
			images[role] = repo.ImageRef(string(role), version)
		}
	}
	return images
}
