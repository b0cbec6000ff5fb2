// Package accounts implements email based user accounts: signup, login and
// logout, email verification and password reset, plus a staff listing of
// users paginated with the paginator package.
//
// Users are identified by their email address. Passwords are hashed with
// bcrypt and sessions are HS256 JWTs stored in an HTTP-only cookie.
//
// Link tokens:
//   - Verification and password reset emails carry a uidb64 segment (see
//     EncodeUID) and a token minted by StateTokenGenerator. A token is bound
//     to a purpose and to a fingerprint of the user state it was minted for,
//     so it stops validating once that state changes (the account gets
//     verified, the password changes, the user logs in) or its TTL elapses.
//
// Commands:
//   - Account flows are message/handler pairs (RegisterUserHandler,
//     SendVerificationHandler, VerifyAccountHandler and the password reset
//     handlers). Handlers honor context cancellation, run their writes inside
//     RepositoryManager.RunInTx and report results through OnResponse
//     callbacks.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe logins, signups, verifications and
//     password resets. Sinks run best-effort (errors are logged).
//
// HTTP:
//   - RegisterRoutes mounts the account pages on a fiber router. Views are
//     django templates rendered through gofiber/template/django, see
//     NewViewsEngine. LoadSession must run before the account routes.
package accounts
