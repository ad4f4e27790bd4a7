package models

import "testing"

func strptr(s string) *string { return &s }

func TestMessage_ProviderIDList_Empty(t *testing.T) {
	m := Message{}
	if ids := m.ProviderIDList(); ids != nil {
		t.Errorf("ProviderIDList() = %v, want nil", ids)
	}
}

func TestMessage_SetProviderIDList(t *testing.T) {
	m := Message{}
	if err := m.SetProviderIDList([]string{"0A01", "0A02"}); err != nil {
		t.Fatalf("SetProviderIDList: %v", err)
	}
	ids := m.ProviderIDList()
	if len(ids) != 2 {
		t.Fatalf("len(ids) = %d, want 2", len(ids))
	}
	if ids[0] != "0A01" || ids[1] != "0A02" {
		t.Errorf("ids = %v, want [0A01 0A02]", ids)
	}
}

func TestMessage_SetProviderIDList_Empty(t *testing.T) {
	m := Message{ProviderIDs: `["old"]`}
	if err := m.SetProviderIDList(nil); err != nil {
		t.Fatalf("SetProviderIDList: %v", err)
	}
	if m.ProviderIDs != "" {
		t.Errorf("ProviderIDs = %q, want empty", m.ProviderIDs)
	}
}

func TestMessage_ProviderIDList_Corrupt(t *testing.T) {
	m := Message{ProviderIDs: "{not json"}
	if ids := m.ProviderIDList(); ids != nil {
		t.Errorf("ProviderIDList() = %v, want nil for corrupt column", ids)
	}
}

func TestUser_Name(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"full", User{FirstName: strptr("Laura"), LastName: strptr("Bocquillon")}, "Laura Bocquillon"},
		{"first only", User{FirstName: strptr("Laura")}, "Laura"},
		{"phone fallback", User{PhoneNumber: strptr("+33700000000")}, "+33700000000"},
		{"empty", User{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}
