package service

import (
	"strings"

	"github.com/google/uuid"
)

// GuestPrefix 是訪客身分的前綴，真實使用者 ID 不會被當成房主比對
const GuestPrefix = "guest-"

// Verifier 驗證連線時帶來的憑證，回傳使用者 ID
type Verifier interface {
	Verify(credential string) (string, error)
}

// GuestGenerator 產生訪客身分
type GuestGenerator interface {
	NewGuestID() string
}

// GuestGeneratorFunc 讓一般函式實作 GuestGenerator
type GuestGeneratorFunc func() string

func (f GuestGeneratorFunc) NewGuestID() string { return f() }

type randomGuests struct{}

// RandomGuests 以隨機字尾產生訪客 ID
func RandomGuests() GuestGenerator { return randomGuests{} }

func (randomGuests) NewGuestID() string {
	return GuestPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// IsGuest 判斷身分是否為訪客
func IsGuest(identity string) bool {
	return strings.HasPrefix(identity, GuestPrefix)
}
