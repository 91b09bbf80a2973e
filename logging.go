package luahost

// logSuspend records a host function parking a script on a pending Future.
func (r *Runtime) logSuspend(name string, token suspendToken) {
	r.log.Debug().Str("call", name).Str("token", token.String()).Msg("script suspended on host call")
}

// logResume records a suspended call's Future resolving, successfully or
// not.
func (r *Runtime) logResume(token suspendToken, err error) {
	ev := r.log.Debug().Str("token", token.String())
	if err != nil {
		ev = r.log.Warn().Str("token", token.String()).Err(err)
	}
	ev.Msg("suspended call resumed")
}
