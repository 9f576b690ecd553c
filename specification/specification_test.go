package specification_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/shortlink-org/bank-saga/specification"
)

type row struct {
	Client  string
	Manager string
	Balance int
}

var (
	errOtherManager = errors.New("other manager")
	errNotPositive  = errors.New("balance not positive")
)

func managedBy(id string) specification.Func[row] {
	return func(r *row) error {
		if r.Manager != id {
			return errOtherManager
		}

		return nil
	}
}

func positive() specification.Func[row] {
	return func(r *row) error {
		if r.Balance <= 0 {
			return errNotPositive
		}

		return nil
	}
}

type SpecificationSuite struct {
	suite.Suite
	rows []*row
}

func (s *SpecificationSuite) SetupTest() {
	s.rows = []*row{
		{Client: "c-1", Manager: "m-1", Balance: 100},
		{Client: "c-2", Manager: "m-1", Balance: -50},
		{Client: "c-3", Manager: "m-2", Balance: 10},
	}
}

func TestSpecificationSuite(t *testing.T) {
	suite.Run(t, new(SpecificationSuite))
}

func (s *SpecificationSuite) clients(rows []*row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Client)
	}

	return out
}

func (s *SpecificationSuite) TestAnd() {
	got, err := specification.Filter(s.rows, specification.NewAndSpecification[row](managedBy("m-1"), positive()))
	s.Require().NoError(err)
	s.Equal([]string{"c-1"}, s.clients(got))

	err = specification.NewAndSpecification[row](managedBy("m-2"), positive()).IsSatisfiedBy(s.rows[1])
	s.Require().ErrorIs(err, errOtherManager)
	s.Require().ErrorIs(err, errNotPositive)
}

func (s *SpecificationSuite) TestNot() {
	got, err := specification.Filter(s.rows, specification.NewNotSpecification[row](positive()))
	s.Require().NoError(err)
	s.Equal([]string{"c-2"}, s.clients(got))

	s.ErrorIs(specification.NewNotSpecification[row](positive()).IsSatisfiedBy(s.rows[0]), specification.ErrNotSatisfied)
}

func TestFilterNeverReturnsNil(t *testing.T) {
	got, err := specification.Filter[row](nil, positive())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
