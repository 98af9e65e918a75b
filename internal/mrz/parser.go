package mrz

// Parser interprets recognized text under one layout
type Parser interface {
	Parse(text string) *Record
}

// TD3Parser parses the 2 line passport layout
type TD3Parser struct{}

// Parse implements Parser. Text that does not contain two lines yields a
// record with a zero score.
func (TD3Parser) Parse(text string) *Record {
	rec := &Record{Layout: TD3}
	l := selectLines(lines(text), 2, 44)
	if l == nil {
		rec.score(false, false, false, false, false)
		return rec
	}
	rec.Lines = l
	line1, line2 := l[0], l[1]

	number, numberCheck := line2[0:9], digits(line2[9:10])
	birth, birthCheck := digits(line2[13:19]), digits(line2[19:20])
	expiry, expiryCheck := digits(line2[21:27]), digits(line2[27:28])
	personal, personalCheck := line2[28:42], digits(line2[42:43])
	composite := number + numberCheck + birth + birthCheck + expiry + expiryCheck + personal + personalCheck

	rec.DocumentCode = filler(line1[0:2])
	rec.IssuingCountry = filler(letters(line1[2:5]))
	rec.Surname, rec.GivenNames = names(line1[5:44])
	rec.DocumentNumber = filler(number)
	rec.Nationality = filler(letters(line2[10:13]))
	rec.BirthDate = birth
	rec.Sex = filler(line2[20:21])
	rec.ExpiryDate = expiry
	rec.PersonalNumber = filler(personal)

	rec.score(
		verify(number, numberCheck[0]),
		verify(birth, birthCheck[0]),
		verify(expiry, expiryCheck[0]),
		verify(personal, personalCheck[0]),
		verify(composite, digits(line2[43:44])[0]),
	)
	return rec
}

// TD1Parser parses the 3 line identity card layout
type TD1Parser struct{}

// Parse implements Parser. Text that does not contain three lines yields a
// record with a zero score.
func (TD1Parser) Parse(text string) *Record {
	rec := &Record{Layout: TD1}
	l := selectLines(lines(text), 3, 30)
	if l == nil {
		rec.score(false, false, false, false)
		return rec
	}
	rec.Lines = l
	line1, line2, line3 := l[0], l[1], l[2]

	number, numberCheck := line1[5:14], digits(line1[14:15])
	optional1 := line1[15:30]
	birth, birthCheck := digits(line2[0:6]), digits(line2[6:7])
	expiry, expiryCheck := digits(line2[8:14]), digits(line2[14:15])
	optional2 := line2[18:29]
	composite := number + numberCheck + optional1 + birth + birthCheck + expiry + expiryCheck + optional2

	rec.DocumentCode = filler(line1[0:2])
	rec.IssuingCountry = filler(letters(line1[2:5]))
	rec.DocumentNumber = filler(number)
	rec.OptionalData = filler(optional1 + "<" + optional2)
	rec.BirthDate = birth
	rec.Sex = filler(line2[7:8])
	rec.ExpiryDate = expiry
	rec.Nationality = filler(letters(line2[15:18]))
	rec.Surname, rec.GivenNames = names(line3)

	rec.score(
		verify(number, numberCheck[0]),
		verify(birth, birthCheck[0]),
		verify(expiry, expiryCheck[0]),
		verify(composite, digits(line2[29:30])[0]),
	)
	return rec
}
