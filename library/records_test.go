package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBook(t *testing.T) {
	testCases := []struct {
		name string
		line string
		want Book
	}{
		{"three fields", "Tolkien,The Hobbit,1001", Book{Author: "Tolkien", Title: "The Hobbit", Serial: 1001}},
		{"legacy flag true", "Orwell,1984,7,true", Book{Author: "Orwell", Title: "1984", Serial: 7}},
		{"legacy flag false", "Orwell,Animal Farm,8,false", Book{Author: "Orwell", Title: "Animal Farm", Serial: 8}},
		{"quoted comma", `"Tolkien, J.R.R.",The Hobbit,1002`, Book{Author: "Tolkien, J.R.R.", Title: "The Hobbit", Serial: 1002}},
		{"doubled quote", `Anon,"The ""Best"" Book",3`, Book{Author: "Anon", Title: `The "Best" Book`, Serial: 3}},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBook(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeBookMalformed(t *testing.T) {
	for _, line := range []string{
		"only,two",
		"a,b,c,d,e",
		"Author,Title,not-a-number",
		"Author,Title,12,maybe",
	} {
		_, err := decodeBook(line)
		assert.Error(t, err, line)
	}
}

func TestEncodeBookRoundTrip(t *testing.T) {
	books := []Book{
		{Author: "Le Guin", Title: "The Dispossessed", Serial: 1},
		{Author: "Tolkien, J.R.R.", Title: "The Hobbit", Serial: 2},
		{Author: "Anon", Title: `Say "hi", please`, Serial: 3},
	}
	for _, b := range books {
		got, err := decodeBook(encodeBook(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	assert.Equal(t, "Le Guin,The Dispossessed,1", encodeBook(books[0]))
	assert.Equal(t, `"Tolkien, J.R.R.",The Hobbit,2`, encodeBook(books[1]))
}

func TestDecodeAccount(t *testing.T) {
	a, err := decodeAccount("3,Erykah,secret,librarian")
	require.NoError(t, err)
	assert.Equal(t, Account{ID: 3, Name: "Erykah", Password: "secret", Role: "librarian"}, a)
	assert.Equal(t, "3,Erykah,secret,librarian", encodeAccount(a))

	_, err = decodeAccount("x,Erykah,secret,user")
	assert.Error(t, err)
	_, err = decodeAccount("1,too,few")
	assert.Error(t, err)
	_, err = decodeAccount("1,has,a,trailing,list")
	assert.Error(t, err)
}

func TestAccountBookList(t *testing.T) {
	a := Account{ID: 1, Name: "Cameron"}
	a.AddBook(10)
	a.AddBook(11)
	a.AddBook(10)

	assert.True(t, a.RemoveBook(10))
	assert.Equal(t, []int{11, 10}, a.Books)
	assert.False(t, a.RemoveBook(99))
}

func TestAccountIsLibrarian(t *testing.T) {
	assert.True(t, Account{Role: "librarian"}.IsLibrarian())
	assert.True(t, Account{Role: "LIBRARIAN"}.IsLibrarian())
	assert.False(t, Account{Role: "user"}.IsLibrarian())
	assert.False(t, Account{}.IsLibrarian())
}
