package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alfares/bakery-backend/pkg/database"
)

func listRouter(db *gorm.DB, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/notifications", func(c *gin.Context) {
		c.Set("role", role)
		c.Set("user_id", "user-1")
	}, NewHandler(db).List)
	return r
}

func listNotifications(t *testing.T, r *gin.Engine, url string) []NotificationView {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Notifications []NotificationView `json:"notifications"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Notifications
}

func TestListRoleParamCannotWidenAccess(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&database.Notification{Type: "expiry", Message: "alert", Branch: "BranchX"})
	db.Create(&database.Notification{Type: "expiry", Message: "alert", Branch: "BranchY"})

	r := listRouter(db, "custom")

	// A custom user claiming admin via the query param sees nothing
	// without assigned branches.
	got := listNotifications(t, r, "/notifications?userRole=admin")
	if len(got) != 0 {
		t.Fatalf("custom user with userRole=admin saw %d notifications, want 0", len(got))
	}

	// Their assigned branches still work as before.
	got = listNotifications(t, r, `/notifications?assignedBranches=["BranchX"]`)
	if len(got) != 1 || got[0].Branch != "BranchX" {
		t.Fatalf("assigned-branch view = %+v, want only BranchX", got)
	}
}

func TestListAdminTokenSeesAllAndCanNarrow(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&database.Notification{Type: "expiry", Message: "alert", Branch: "BranchX"})
	db.Create(&database.Notification{Type: "expiry", Message: "alert", Branch: "BranchY"})

	r := listRouter(db, "admin")

	if got := listNotifications(t, r, "/notifications"); len(got) != 2 {
		t.Fatalf("admin saw %d notifications, want 2", len(got))
	}

	// Admin can preview the restricted view through the param.
	got := listNotifications(t, r, `/notifications?userRole=custom&assignedBranches=["BranchY"]`)
	if len(got) != 1 || got[0].Branch != "BranchY" {
		t.Fatalf("narrowed view = %+v, want only BranchY", got)
	}
}
