// Package detour redirects calls from one function to another at runtime.
//
// A Hook patches the target's entry with a jump to a detour and hands back
// a trampoline that preserves the original behavior. Hooks start disabled;
// Enable and Disable flip the patch on demand, and a Queue commits a batch
// of flips in one operation. StaticHook ties a hook to a package-level
// variable with an exactly-once initialization contract, and ContainPanic
// keeps panics from unwinding through patched frames.
//
// Limitations:
//   - Only supports amd64 and arm64 (arm64 requires cgo)
//   - Relies on internal Go APIs that can break at any time
//   - Silently fails to redirect call sites where the target was inlined
//   - Detours passed to New must not capture variables; state belongs in
//     a StaticHook
//   - Enabling or disabling a hook while another thread executes the
//     target is undefined behavior
package detour
