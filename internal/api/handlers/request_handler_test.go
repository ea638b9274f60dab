package handlers

import (
	"testing"

	"device-manager-api-server/internal/workflow"

	"go.mongodb.org/mongo-driver/bson"
)

func statusFilterValues(t *testing.T, filter bson.M) []string {
	t.Helper()
	in, ok := filter["$in"].(bson.A)
	if !ok {
		t.Fatalf("expected $in filter, got %#v", filter)
	}
	values := make([]string, 0, len(in))
	for _, v := range in {
		s, ok := v.(string)
		if !ok {
			t.Fatalf("non-string value in $in: %#v", v)
		}
		values = append(values, s)
	}
	return values
}

// Lọc ?status=approved phải tìm ra cả document lưu biến thể thô center_approved,
// và ngược lại: client gửi biến thể thô cũng ra cùng một tập kết quả.
func TestStatusFilterMatchesRawVariant(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"canonical query", workflow.StatusApproved, []string{"approved", "center_approved"}},
		{"raw variant query", workflow.CenterPrefix + workflow.StatusApproved, []string{"approved", "center_approved"}},
		{"rejected", workflow.StatusRejected, []string{"rejected", "center_rejected"}},
		{"status without raw variant", workflow.StatusDelivering, []string{"delivering", "center_delivering"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statusFilterValues(t, statusFilter(tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("filter values = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("filter values = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
