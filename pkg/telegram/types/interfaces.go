package types

import "context"

// CodeProvider supplies the OTP code for an interactive login. It blocks
// until the code arrives out-of-band or the context is done.
type CodeProvider func(ctx context.Context) (string, error)

// PasswordProvider supplies the 2FA password when the account demands a
// second factor. It is only invoked if the provider asks for it.
type PasswordProvider func(ctx context.Context) (string, error)
