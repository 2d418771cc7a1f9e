package enforce

// ValidatePlate reports whether plate matches the Mercosul layout: three
// uppercase letters, one digit, one uppercase letter, two digits. Pure and
// total; shared by the controller's result intake and the camera
// simulator's self-check.
func ValidatePlate(plate string) bool {
	if len(plate) != 7 {
		return false
	}
	for i := 0; i < 3; i++ {
		if plate[i] < 'A' || plate[i] > 'Z' {
			return false
		}
	}
	if plate[3] < '0' || plate[3] > '9' {
		return false
	}
	if plate[4] < 'A' || plate[4] > 'Z' {
		return false
	}
	for i := 5; i < 7; i++ {
		if plate[i] < '0' || plate[i] > '9' {
			return false
		}
	}
	return true
}
