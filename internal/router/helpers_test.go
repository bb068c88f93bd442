package router

import "strconv"

func utoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
