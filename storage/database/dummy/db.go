package dummydb

import (
	"sync"

	"github.com/momentum-academy/portal/core/assignment"
	"github.com/momentum-academy/portal/core/doubt"
	"github.com/momentum-academy/portal/core/notification"
	"github.com/momentum-academy/portal/core/resource"
	"github.com/momentum-academy/portal/core/user"
)

type (
	DB struct {
		user         *userTable
		resource     *resourceTable
		assignment   *assignmentTable
		doubt        *doubtTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	resourceTable struct {
		sync.RWMutex
		table map[string]*resource.Resource
	}

	// assignmentTable also owns submissions; both are guarded by the same
	// lock so conditional submission writes see a consistent view.
	assignmentTable struct {
		sync.RWMutex
		table       map[string]*assignment.Assignment
		submissions map[string]*assignment.Submission
	}

	doubtTable struct {
		sync.RWMutex
		table map[string]*doubt.Doubt
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		resource: &resourceTable{table: make(map[string]*resource.Resource)},
		assignment: &assignmentTable{
			table:       make(map[string]*assignment.Assignment),
			submissions: make(map[string]*assignment.Submission),
		},
		doubt:        &doubtTable{table: make(map[string]*doubt.Doubt)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
