package model

import (
	"strconv"
)

// カート・チェックアウト・注文の持ち主。
// ゲストトークンかユーザーIDのどちらか片方だけが入る。
type OwnerKey struct {
	UserID     int64
	GuestToken string
}

func UserOwner(userID int64) OwnerKey {
	return OwnerKey{UserID: userID}
}

func GuestOwner(token string) OwnerKey {
	return OwnerKey{GuestToken: token}
}

func (k OwnerKey) IsGuest() bool {
	return k.GuestToken != ""
}

// どちらか片方だけ
func (k OwnerKey) Valid() bool {
	if k.GuestToken != "" {
		return k.UserID == 0
	}
	return k.UserID > 0
}

// キャッシュキーやログ用
func (k OwnerKey) String() string {
	if k.IsGuest() {
		return "guest:" + k.GuestToken
	}
	return "user:" + strconv.FormatInt(k.UserID, 10)
}

// DBのuser_id / guest_token列に入れる値
func (k OwnerKey) Columns() (*int64, *string) {
	if k.IsGuest() {
		token := k.GuestToken
		return nil, &token
	}
	id := k.UserID
	return &id, nil
}

func ownerFromColumns(userID *int64, guestToken *string) OwnerKey {
	if guestToken != nil && *guestToken != "" {
		return GuestOwner(*guestToken)
	}
	if userID != nil {
		return UserOwner(*userID)
	}
	return OwnerKey{}
}
