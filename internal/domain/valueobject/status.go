package valueobject

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "PENDING"
	ProposalStatusAccepted  ProposalStatus = "ACCEPTED"
	ProposalStatusRejected  ProposalStatus = "REJECTED"
	ProposalStatusCompleted ProposalStatus = "COMPLETED"
)

// ProposalStatuses перечисляет допустимые статусы в порядке объявления.
var ProposalStatuses = []ProposalStatus{
	ProposalStatusPending,
	ProposalStatusAccepted,
	ProposalStatusRejected,
	ProposalStatusCompleted,
}

func (s ProposalStatus) IsValid() bool {
	for _, known := range ProposalStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s ProposalStatus) String() string {
	return string(s)
}

type UserRole string

const (
	UserRoleClient          UserRole = "client"
	UserRoleServiceProvider UserRole = "service_provider"
	UserRoleAdmin           UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleClient, UserRoleServiceProvider, UserRoleAdmin:
		return true
	}
	return false
}
