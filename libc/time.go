package libc

import "time"

// Time returns the current platform time. It reads the clock through the
// runtime services and keeps working after boot services have been exited.
func (env *Env) Time() (time.Time, error) {
	now, err := env.ctx.Runtime.GetTime()
	if err != nil {
		env.setErrno(err)
		return time.Time{}, err
	}
	return now.GoTime(), nil
}
